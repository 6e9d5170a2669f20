package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/richinsley/goreactive/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream features to websocket clients",
	Long: `Serve extracted features on ws://<addr>/ws at --fps and accept source
commands from clients.

Frames are JSON by default; connect with ?format=msgpack for msgpack.

Commands (JSON):
  {"type":"set_source","source":"microphone|capture|file","file":"path","monitor":true}
  {"type":"set_monitor","enabled":false}
  {"type":"stop"}
  {"type":"status"}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			opts.Server.Addr = serveAddr
			if err := opts.Validate(); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := newSession(opts)
		defer s.close()
		if err := s.start(ctx, monitorFlag(cmd)); err != nil {
			return err
		}

		return server.New(opts, engineView{s}, s.extractor).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from options)")
	rootCmd.AddCommand(serveCmd)
}
