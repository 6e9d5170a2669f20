// Package analysis turns a live sample stream into a byte spectrum and
// reduces that spectrum to per-frame features.
package analysis

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/richinsley/goreactive/options"
)

// TapConfig configures a spectrum tap.
type TapConfig struct {
	FFTSize     int     // power of two; the tap exposes FFTSize/2 bins
	Smoothing   float64 // time constant in [0, 1) applied to linear magnitudes
	MinDecibels float64 // maps to byte 0
	MaxDecibels float64 // maps to byte 255
	Hop         int     // samples between snapshots; <= 0 means FFTSize
}

// TapConfigFromOptions builds a TapConfig from the analysis options.
func TapConfigFromOptions(opts *options.EngineOptions) TapConfig {
	return TapConfig{
		FFTSize:     opts.Analysis.FFTSize,
		Smoothing:   opts.Analysis.Smoothing,
		MinDecibels: opts.Analysis.MinDecibels,
		MaxDecibels: opts.Analysis.MaxDecibels,
		Hop:         opts.AnalysisHop(),
	}
}

// Tap is a frequency analysis node. Write is called by the single consumer
// goroutine of the signal graph; ByteFrequencyData may be called from any
// goroutine and never waits for a snapshot in progress.
type Tap struct {
	cfg    TapConfig
	window []float64

	// Owned by the writer goroutine.
	history   []float32
	pos       int
	sinceSnap int
	frame     []float64
	smoothed  []float64
	scratch   []byte

	mu       sync.RWMutex
	snapshot []byte
}

// NewTap creates a tap whose snapshot starts as all zeros.
func NewTap(cfg TapConfig) *Tap {
	if cfg.Hop <= 0 {
		cfg.Hop = cfg.FFTSize
	}
	bins := cfg.FFTSize / 2
	return &Tap{
		cfg:      cfg,
		window:   window.Blackman(cfg.FFTSize),
		history:  make([]float32, cfg.FFTSize),
		frame:    make([]float64, cfg.FFTSize),
		smoothed: make([]float64, bins),
		scratch:  make([]byte, bins),
		snapshot: make([]byte, bins),
	}
}

// FrequencyBinCount is half the FFT size.
func (t *Tap) FrequencyBinCount() int {
	return t.cfg.FFTSize / 2
}

// Write feeds samples into the analysis window, taking a new snapshot every
// Hop samples.
func (t *Tap) Write(samples []float32) {
	n := len(t.history)
	for _, s := range samples {
		t.history[t.pos] = s
		t.pos = (t.pos + 1) % n
		t.sinceSnap++
		if t.sinceSnap >= t.cfg.Hop {
			t.sinceSnap = 0
			t.analyze()
		}
	}
}

// analyze windows the most recent FFTSize samples, transforms them and
// publishes a new byte snapshot.
func (t *Tap) analyze() {
	n := len(t.history)
	for i := range n {
		t.frame[i] = float64(t.history[(t.pos+i)%n]) * t.window[i]
	}
	spectrum := fft.FFTReal(t.frame)

	tau := t.cfg.Smoothing
	rangeScale := 255 / (t.cfg.MaxDecibels - t.cfg.MinDecibels)
	invN := 1 / float64(n)
	for k := range t.smoothed {
		re, im := real(spectrum[k]), imag(spectrum[k])
		mag := math.Sqrt(re*re+im*im) * invN
		v := tau*t.smoothed[k] + (1-tau)*mag
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		t.smoothed[k] = v
		t.scratch[k] = toByte(v, t.cfg.MinDecibels, rangeScale)
	}

	t.mu.Lock()
	copy(t.snapshot, t.scratch)
	t.mu.Unlock()
}

func toByte(mag, minDecibels, rangeScale float64) byte {
	if mag <= 0 {
		return 0
	}
	scaled := (20*math.Log10(mag) - minDecibels) * rangeScale
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	}
	return byte(scaled)
}

// ByteFrequencyData copies the latest snapshot into dst. It returns false
// without copying when a snapshot is being published.
func (t *Tap) ByteFrequencyData(dst []byte) (int, bool) {
	if !t.mu.TryRLock() {
		return 0, false
	}
	defer t.mu.RUnlock()
	return copy(dst, t.snapshot), true
}

// ReadByteFrequencyData is the blocking form of ByteFrequencyData.
func (t *Tap) ReadByteFrequencyData(dst []byte) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copy(dst, t.snapshot)
}
