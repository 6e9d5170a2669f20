package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richinsley/goreactive/glfwcontext"
	"github.com/richinsley/goreactive/graphics"
	"github.com/richinsley/goreactive/renderer"
	"github.com/spf13/cobra"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Render the built-in shader in a window",
	Long: `Render the built-in audio-reactive shader in a GLFW window.

Keys:
  1    microphone
  2    system audio capture
  3    the file given with --file
  M    toggle monitor
  Esc  quit`,
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

		if err := glfwcontext.InitGraphics(); err != nil {
			return fmt.Errorf("initialize graphics: %w", err)
		}
		defer glfwcontext.TerminateGraphics()

		win, err := glfwcontext.New(opts)
		if err != nil {
			return fmt.Errorf("create window: %w", err)
		}
		defer win.Shutdown()

		win.RegisterKeyCallback(graphics.Key1, func() { s.switchSource("microphone", "") })
		win.RegisterKeyCallback(graphics.Key2, func() { s.switchSource("capture", "") })
		win.RegisterKeyCallback(graphics.Key3, func() { s.switchSource("file", filePath) })
		win.RegisterKeyCallback(graphics.KeyM, s.toggleMonitor)

		r, err := renderer.NewRenderer(win, renderer.Options{
			BinCount:    opts.Analysis.FFTSize / 2,
			FPS:         opts.Render.FPS,
			Sensitivity: opts.Render.Sensitivity,
		})
		if err != nil {
			return err
		}
		defer r.Shutdown()

		r.Run(ctx, s.extractor)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(windowCmd)
}
