package meter

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/richinsley/goreactive/analysis"
)

func TestBar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v     float32
		width int
		want  string
	}{
		{0, 4, "░░░░"},
		{1, 4, "████"},
		{0.5, 4, "██░░"},
		{2, 3, "███"},
		{-1, 3, "░░░"},
		{0.5, 0, ""},
	}
	for _, tt := range tests {
		if got := Bar(tt.v, tt.width); got != tt.want {
			t.Errorf("Bar(%v, %d) = %q, want %q", tt.v, tt.width, got, tt.want)
		}
	}
}

func TestSparkline(t *testing.T) {
	t.Parallel()

	if got := Sparkline(nil, 3); got != "   " {
		t.Errorf("Sparkline(nil) = %q", got)
	}
	if got := Sparkline([]byte{0, 255, 0, 36}, 4); got != " █ ▁" {
		t.Errorf("Sparkline = %q", got)
	}

	// Wider than the spectrum repeats bins; narrower takes the peak.
	if got := utf8.RuneCountInString(Sparkline([]byte{255}, 5)); got != 5 {
		t.Errorf("width = %d, want 5", got)
	}
	if got := Sparkline([]byte{10, 255, 0, 0}, 2); []rune(got)[0] != '█' {
		t.Errorf("Sparkline peak = %q", got)
	}
}

func TestFrameRender(t *testing.T) {
	t.Parallel()

	out := Frame{
		Styles:   NewStyles(DefaultTheme),
		Title:    "goreactive",
		Status:   "microphone",
		Features: analysis.FeatureVector{Bass: 1, Spectrum: []byte{255, 0}},
		Help:     "ctrl+c to quit",
	}.Render(60)

	for _, want := range []string{"goreactive", "microphone", "bass", "mid", "high", "volume", "1.00", "0.00", "ctrl+c to quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("frame missing %q:\n%s", want, out)
		}
	}
}

type constFeatures struct{}

func (constFeatures) Extract() analysis.FeatureVector {
	return analysis.FeatureVector{Volume: 0.3}
}

func TestRunDrawsUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := Run(ctx, &buf, constFeatures{}, Config{FPS: 60, Sensitivity: 2, Width: 40, Title: "t"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(buf.String(), "0.60") {
		t.Errorf("scaled volume not drawn:\n%s", buf.String())
	}
}
