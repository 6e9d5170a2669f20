// Package options holds the engine configuration shared by the audio graph,
// the analysis tap and the frontends.
package options

import (
	"time"
)

// Defaults used when a value is not set in the config file or on the command line.
const (
	DefaultSampleRate       = 44100
	DefaultFramesPerBuffer  = 1024
	DefaultFFTSize          = 512
	DefaultSmoothing        = 0.8
	DefaultMinDecibels      = -100.0
	DefaultMaxDecibels      = -30.0
	DefaultUpdateRate       = 60
	DefaultBassCutoff       = 0.1
	DefaultMidCutoff        = 0.4
	DefaultVolumeAlpha      = 0.1
	DefaultRampTimeConstant = 100 * time.Millisecond
	DefaultStartupTimeout   = 3 * time.Second
	DefaultFPS              = 60
	DefaultSensitivity      = 1.0
	DefaultWidth            = 1280
	DefaultHeight           = 720
	DefaultServerAddr       = "127.0.0.1:8090"
)

// EngineOptions is the full configuration of the engine and its frontends.
type EngineOptions struct {
	SampleRate      int    `yaml:"sample_rate" validate:"oneof=8000 16000 22050 32000 44100 48000 96000"`
	FramesPerBuffer int    `yaml:"frames_per_buffer" validate:"min=64,max=8192"`
	InputDevice     string `yaml:"input_device"`  // PortAudio input device name, empty for the default
	OutputDevice    string `yaml:"output_device"` // FFmpeg output device; empty plays through PortAudio
	FFMPEGPath      string `yaml:"ffmpeg_path"`
	// FFprobePath defaults to the ffprobe next to FFMPEGPath.
	FFprobePath     string `yaml:"ffprobe_path"`

	Capture  CaptureOptions  `yaml:"capture"`
	Analysis AnalysisOptions `yaml:"analysis"`
	Monitor  MonitorOptions  `yaml:"monitor"`
	Render   RenderOptions   `yaml:"render"`
	Server   ServerOptions   `yaml:"server"`
}

// CaptureOptions configures tab/system audio capture through FFmpeg.
type CaptureOptions struct {
	Format         string        `yaml:"format"` // FFmpeg input format, empty picks one per OS
	Device         string        `yaml:"device"` // FFmpeg input device, empty picks one per OS
	StartupTimeout time.Duration `yaml:"startup_timeout" validate:"min=0"`
}

// AnalysisOptions are the tap and extractor constants. The cutoffs and
// smoothing values are perceptual choices and are kept configurable.
type AnalysisOptions struct {
	FFTSize     int     `yaml:"fft_size" validate:"min=32,max=32768,pow2"`
	Smoothing   float64 `yaml:"smoothing" validate:"gte=0,lt=1"`
	MinDecibels float64 `yaml:"min_decibels" validate:"ltfield=MaxDecibels"`
	MaxDecibels float64 `yaml:"max_decibels" validate:"lte=0"`
	UpdateRate  int     `yaml:"update_rate" validate:"min=1,max=1000"`
	BassCutoff  float64 `yaml:"bass_cutoff" validate:"gt=0,ltfield=MidCutoff"`
	MidCutoff   float64 `yaml:"mid_cutoff" validate:"lt=1"`
	VolumeAlpha float64 `yaml:"volume_alpha" validate:"gt=0,lte=1"`
}

// MonitorOptions configures the loopback gain stage.
type MonitorOptions struct {
	RampTimeConstant time.Duration `yaml:"ramp_time_constant" validate:"min=0"`
}

// RenderOptions configures the frame-driven consumers.
type RenderOptions struct {
	FPS         int     `yaml:"fps" validate:"min=1,max=240"`
	Sensitivity float64 `yaml:"sensitivity" validate:"gt=0,lte=10"`
	Width       int     `yaml:"width" validate:"min=64"`
	Height      int     `yaml:"height" validate:"min=64"`
}

// ServerOptions configures the websocket feature server.
type ServerOptions struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// Default returns options populated with the default values.
func Default() *EngineOptions {
	return &EngineOptions{
		SampleRate:      DefaultSampleRate,
		FramesPerBuffer: DefaultFramesPerBuffer,
		Capture: CaptureOptions{
			StartupTimeout: DefaultStartupTimeout,
		},
		Analysis: AnalysisOptions{
			FFTSize:     DefaultFFTSize,
			Smoothing:   DefaultSmoothing,
			MinDecibels: DefaultMinDecibels,
			MaxDecibels: DefaultMaxDecibels,
			UpdateRate:  DefaultUpdateRate,
			BassCutoff:  DefaultBassCutoff,
			MidCutoff:   DefaultMidCutoff,
			VolumeAlpha: DefaultVolumeAlpha,
		},
		Monitor: MonitorOptions{
			RampTimeConstant: DefaultRampTimeConstant,
		},
		Render: RenderOptions{
			FPS:         DefaultFPS,
			Sensitivity: DefaultSensitivity,
			Width:       DefaultWidth,
			Height:      DefaultHeight,
		},
		Server: ServerOptions{
			Addr: DefaultServerAddr,
		},
	}
}

// AnalysisHop is the number of samples between two spectral snapshots.
func (o *EngineOptions) AnalysisHop() int {
	if o.Analysis.UpdateRate <= 0 {
		return o.Analysis.FFTSize
	}
	return max(1, o.SampleRate/o.Analysis.UpdateRate)
}
