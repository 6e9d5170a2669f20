package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/richinsley/goreactive/meter"
	"github.com/spf13/cobra"
)

var meterWidth int

var meterCmd = &cobra.Command{
	Use:   "meter",
	Short: "Draw feature bars in the terminal",
	Long: `Draw the bass, mid, high and volume features and the spectrum as
terminal bars, redrawn at --fps.

Examples:
  goreactive meter --source microphone
  goreactive meter --source file --file track.ogg --monitor=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := newSession(opts)
		defer s.close()
		if err := s.start(ctx, monitorFlag(cmd)); err != nil {
			return err
		}

		return meter.Run(ctx, os.Stdout, s.extractor, meter.Config{
			FPS:         opts.Render.FPS,
			Sensitivity: opts.Render.Sensitivity,
			Width:       meterWidth,
			Title:       "goreactive",
			Status:      s.status,
			Help:        "ctrl+c to quit",
		})
	},
}

func init() {
	meterCmd.Flags().IntVar(&meterWidth, "width", 72, "meter width in columns")
	rootCmd.AddCommand(meterCmd)
}
