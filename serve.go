package main

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve presentation status over HTTP, WebSocket and OSC",
	Long: `serve polls the presentation and exposes it on:

  GET /api/status         full snapshot
  GET /api/status/slide   slide position
  GET /api/status/video   video playback with an HH:MM:SS countdown
  GET /api/thumbnail      current slide image
  GET /ws                 push updates
  GET /healthz

With osc.enabled every change is also sent to osc.host:osc.port.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		closer, err := setupLogging(cfg, false)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx := cmd.Context()
		source := newSource(cfg)

		poller := NewPoller(source, time.Duration(cfg.Timing.PollMs)*time.Millisecond, logger)

		if cfg.OSC.Enabled {
			updates, unsubscribe := poller.Subscribe()
			defer unsubscribe()
			publisher := NewOSCPublisher(cfg.OSC.Host, cfg.OSC.Port, logger)
			go publisher.Run(ctx, updates)
		}

		server := NewServer(source, poller, cfg.Server.CORSOrigins, logger)
		go poller.Run(ctx)

		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		return server.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "address to listen on")
	serveCmd.Flags().Int("port", 8787, "port to listen on")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
