package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/richinsley/goreactive/options"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	sourceName  string
	filePath    string
	monitor     bool
	fps         int
	sensitivity float64
)

var rootCmd = &cobra.Command{
	Use:   "goreactive",
	Short: "Audio-reactive visuals",
	Long: `goreactive analyses a live or file-based audio signal and drives visuals
with its bass, mid, high and volume features.

Sources:
  microphone  the configured or default PortAudio input
  capture     system audio through FFmpeg (PulseAudio monitor, avfoundation, dshow)
  file        a WAV, MP3 or Ogg Vorbis file, looped; other formats go through FFmpeg

Examples:
  goreactive window --source microphone
  goreactive meter --source file --file track.mp3
  goreactive serve --config goreactive.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML options file")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&sourceName, "source", "", "audio source to start with (microphone, capture, file)")
	pf.StringVar(&filePath, "file", "", "audio file for the file source")
	pf.BoolVar(&monitor, "monitor", false, "play the source through the output device (default: on for files only)")
	pf.IntVar(&fps, "fps", options.DefaultFPS, "frames per second")
	pf.Float64Var(&sensitivity, "sensitivity", options.DefaultSensitivity, "feature multiplier")
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// loadOptions reads --config, applies the flags that were set and validates.
func loadOptions(cmd *cobra.Command) (*options.EngineOptions, error) {
	opts, err := options.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("fps") {
		opts.Render.FPS = fps
	}
	if flags.Changed("sensitivity") {
		opts.Render.Sensitivity = sensitivity
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// monitorFlag returns --monitor if it was given, else nil.
func monitorFlag(cmd *cobra.Command) *bool {
	if cmd.Flags().Changed("monitor") {
		return &monitor
	}
	return nil
}
