package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "gopresenting",
})

func applyLogLevel(cfg Config) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
}

// setupLogging points the logger at its destination. The terminal monitor
// owns the screen, so in tui mode logs go to log.file or nowhere.
func setupLogging(cfg Config, tui bool) (io.Closer, error) {
	applyLogLevel(cfg)

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logger.SetOutput(f)
		return f, nil
	}
	if tui {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(os.Stderr)
	}
	return io.NopCloser(nil), nil
}
