package options

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(o *EngineOptions)
		want   string
	}{
		{"fft not power of two", func(o *EngineOptions) { o.Analysis.FFTSize = 500 }, "Analysis.FFTSize must be a power of two"},
		{"fft too small", func(o *EngineOptions) { o.Analysis.FFTSize = 16 }, "Analysis.FFTSize must be at least 32"},
		{"smoothing one", func(o *EngineOptions) { o.Analysis.Smoothing = 1 }, "Analysis.Smoothing must be less than 1"},
		{"cutoffs reversed", func(o *EngineOptions) { o.Analysis.BassCutoff = 0.5 }, "Analysis.BassCutoff must be less than MidCutoff"},
		{"decibels reversed", func(o *EngineOptions) { o.Analysis.MinDecibels = -10 }, "Analysis.MinDecibels must be less than MaxDecibels"},
		{"odd sample rate", func(o *EngineOptions) { o.SampleRate = 12345 }, "SampleRate must be one of"},
		{"zero fps", func(o *EngineOptions) { o.Render.FPS = 0 }, "Render.FPS must be at least 1"},
		{"bad addr", func(o *EngineOptions) { o.Server.Addr = "nope" }, "Server.Addr must be host:port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := Default()
			tt.mutate(o)
			err := o.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "goreactive.yaml")
	content := `
sample_rate: 48000
analysis:
  fft_size: 1024
  smoothing: 0.5
monitor:
  ramp_time_constant: 250ms
render:
  fps: 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if opts.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", opts.SampleRate)
	}
	if opts.Analysis.FFTSize != 1024 {
		t.Errorf("FFTSize = %d, want 1024", opts.Analysis.FFTSize)
	}
	if opts.Analysis.Smoothing != 0.5 {
		t.Errorf("Smoothing = %v, want 0.5", opts.Analysis.Smoothing)
	}
	if opts.Monitor.RampTimeConstant != 250*time.Millisecond {
		t.Errorf("RampTimeConstant = %v, want 250ms", opts.Monitor.RampTimeConstant)
	}
	if opts.Render.FPS != 30 {
		t.Errorf("FPS = %d, want 30", opts.Render.FPS)
	}
	// Untouched values keep their defaults.
	if opts.Analysis.BassCutoff != DefaultBassCutoff {
		t.Errorf("BassCutoff = %v, want %v", opts.Analysis.BassCutoff, DefaultBassCutoff)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("analysis:\n  fft_size: 300\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() = nil error, want validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() = nil error, want read error")
	}
}

func TestAnalysisHop(t *testing.T) {
	t.Parallel()

	o := Default()
	if got := o.AnalysisHop(); got != 735 {
		t.Errorf("AnalysisHop() = %d, want 735", got)
	}
	o.Analysis.UpdateRate = 0
	if got := o.AnalysisHop(); got != o.Analysis.FFTSize {
		t.Errorf("AnalysisHop() with no rate = %d, want %d", got, o.Analysis.FFTSize)
	}
}
