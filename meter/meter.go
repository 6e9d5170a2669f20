// Package meter renders extracted audio features as terminal bars.
package meter

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/richinsley/goreactive/analysis"
)

// Theme is the color scheme of the meter.
type Theme struct {
	Bass   lipgloss.Color
	Mid    lipgloss.Color
	High   lipgloss.Color
	Volume lipgloss.Color
	Dim    lipgloss.Color
}

// DefaultTheme follows the visualizer palette.
var DefaultTheme = Theme{
	Bass:   lipgloss.Color("#ff2d75"),
	Mid:    lipgloss.Color("#ffb000"),
	High:   lipgloss.Color("#00e5ff"),
	Volume: lipgloss.Color("#00ff9f"),
	Dim:    lipgloss.Color("#6e7681"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Bass     lipgloss.Style
	Mid      lipgloss.Style
	High     lipgloss.Style
	Volume   lipgloss.Style
	Spectrum lipgloss.Style
	Help     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Volume),
		Label:    lipgloss.NewStyle().Bold(true).Width(7),
		Bass:     lipgloss.NewStyle().Foreground(t.Bass),
		Mid:      lipgloss.NewStyle().Foreground(t.Mid),
		High:     lipgloss.NewStyle().Foreground(t.High),
		Volume:   lipgloss.NewStyle().Foreground(t.Volume),
		Spectrum: lipgloss.NewStyle().Foreground(t.High),
		Help:     lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Bar renders v in [0, 1] as a bar of the given width.
func Bar(v float32, width int) string {
	if width <= 0 {
		return ""
	}
	v = min(max(v, 0), 1)
	filled := int(math.Round(float64(v) * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

var levels = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders spectrum as width columns, each the peak of the bins it covers.
func Sparkline(spectrum []byte, width int) string {
	if width <= 0 {
		return ""
	}
	if len(spectrum) == 0 {
		return strings.Repeat(" ", width)
	}
	var b strings.Builder
	for col := range width {
		start := col * len(spectrum) / width
		end := max((col+1)*len(spectrum)/width, start+1)
		peak := byte(0)
		for _, v := range spectrum[start:min(end, len(spectrum))] {
			peak = max(peak, v)
		}
		if peak == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(levels[int(peak)*(len(levels)-1)/255])
	}
	return b.String()
}

// Frame is one meter screen.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Features analysis.FeatureVector
	Help     string
}

// Render renders the frame for a terminal of the given width.
func (f Frame) Render(width int) string {
	barWidth := max(width-lipgloss.Width(f.Styles.Label.Render(""))-8, 10)

	row := func(label string, style lipgloss.Style, v float32) string {
		return f.Styles.Label.Render(label) + style.Render(Bar(v, barWidth)) + fmt.Sprintf(" %4.2f", v)
	}

	lines := []string{
		f.Styles.Title.Render(f.Title) + " " + f.Styles.Help.Render("["+f.Status+"]"),
		"",
		row("bass", f.Styles.Bass, f.Features.Bass),
		row("mid", f.Styles.Mid, f.Features.Mid),
		row("high", f.Styles.High, f.Features.High),
		row("volume", f.Styles.Volume, f.Features.Volume),
		"",
		f.Styles.Label.Render("fft") + f.Styles.Spectrum.Render(Sparkline(f.Features.Spectrum, barWidth)),
	}
	if f.Help != "" {
		lines = append(lines, "", f.Styles.Help.Render(f.Help))
	}
	return strings.Join(lines, "\n")
}

// FeatureSource produces one feature vector per frame.
type FeatureSource interface {
	Extract() analysis.FeatureVector
}

// Config configures Run.
type Config struct {
	FPS         int
	Sensitivity float64
	Width       int
	Title       string
	Status      func() string
	Help        string
}

// Run redraws the meter on w at cfg.FPS until ctx is cancelled.
func Run(ctx context.Context, w io.Writer, src FeatureSource, cfg Config) error {
	styles := NewStyles(DefaultTheme)
	ticker := time.NewTicker(time.Second / time.Duration(max(cfg.FPS, 1)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		status := ""
		if cfg.Status != nil {
			status = cfg.Status()
		}
		frame := Frame{
			Styles:   styles,
			Title:    cfg.Title,
			Status:   status,
			Features: src.Extract().Scaled(cfg.Sensitivity),
			Help:     cfg.Help,
		}
		// Home the cursor and clear before each frame.
		if _, err := io.WriteString(w, "\x1b[H\x1b[2J"+frame.Render(cfg.Width)+"\n"); err != nil {
			return fmt.Errorf("draw meter: %w", err)
		}
	}
}
