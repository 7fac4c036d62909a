package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gopresenting/status"
)

var (
	// Version is set during build
	Version = "dev"

	cfgFile    string
	prettyFlag bool
	noPreview  bool
	colorFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "gopresenting",
	Short: "Live PowerPoint slide and video status for show control",
	Long: `gopresenting reads the current slide, slideshow state and embedded video
playback from a running PowerPoint and reports it as JSON, in a terminal
monitor, over HTTP/WebSocket or as OSC messages for Companion.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(viper.GetViper(), cfgFile, cmd.Name() != statusCmd.Name())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print one status snapshot as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		closer, err := setupLogging(cfg, false)
		if err != nil {
			return err
		}
		defer closer.Close()

		st := newSource(cfg).GetPresentationStatus()

		enc := json.NewEncoder(cmd.OutOrStdout())
		if prettyFlag {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(st)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live terminal monitor of the presentation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		closer, err := setupLogging(cfg, true)
		if err != nil {
			return err
		}
		defer closer.Close()

		color := cfg.UI.Color
		if cmd.Flags().Changed("color") {
			color = colorFlag
		}

		m := newModel(newSource(cfg), color, supportsKittyGraphics(), !noPreview)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal monitor: %w", err)
		}
		return nil
	},
}

// newSource builds the configured source: a remote server when
// source.remote_url is set, the local application otherwise. Local queries
// are bounded by timing.query_timeout_ms.
func newSource(cfg Config) status.Source {
	timeout := time.Duration(cfg.Timing.QueryTimeoutMs) * time.Millisecond

	if cfg.Source.RemoteURL != "" {
		remote, err := status.NewRemoteSource(cfg.Source.RemoteURL, timeout)
		if err == nil {
			logger.Debug("using remote source", "url", cfg.Source.RemoteURL)
			return remote
		}
		logger.Warn("ignoring remote source", "err", err)
	}

	return status.WithTimeout(status.NewQuerier(nil, status.WithLogger(logger)), timeout)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/gopresenting/config.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("remote", "", "read status from a gopresenting server at this URL")
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("source.remote_url", pf.Lookup("remote"))

	statusCmd.Flags().BoolVar(&prettyFlag, "pretty", false, "indent the JSON output")

	watchCmd.Flags().StringVarP(&colorFlag, "color", "c", "2", "accent color (ANSI code or hex)")
	watchCmd.Flags().BoolVar(&noPreview, "no-preview", false, "disable the slide preview")

	rootCmd.AddCommand(statusCmd, watchCmd, serveCmd)
}
