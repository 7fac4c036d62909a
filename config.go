package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gopresenting/status"
)

// Config holds all application configuration
type Config struct {
	UI struct {
		Color     string `mapstructure:"color"`
		ColorMode string `mapstructure:"color_mode"`
		MaxWidth  int    `mapstructure:"max_width"`
	} `mapstructure:"ui"`
	Thumbnail struct {
		Enabled      bool   `mapstructure:"enabled"`
		Format       string `mapstructure:"format"`
		Padding      int    `mapstructure:"padding"`
		WidthPixels  int    `mapstructure:"width_pixels"`
		WidthColumns int    `mapstructure:"width_columns"`
	} `mapstructure:"thumbnail"`
	Text struct {
		MaxLength int `mapstructure:"max_length"`
	} `mapstructure:"text"`
	Timing struct {
		UIRefreshMs    int `mapstructure:"ui_refresh_ms"`
		PollMs         int `mapstructure:"poll_ms"`
		QueryTimeoutMs int `mapstructure:"query_timeout_ms"`
	} `mapstructure:"timing"`
	Source struct {
		RemoteURL string `mapstructure:"remote_url"`
	} `mapstructure:"source"`
	Server struct {
		Host        string   `mapstructure:"host"`
		Port        int      `mapstructure:"port"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"server"`
	OSC struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"osc"`
	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`
}

// defaults are registered with viper and reused when a field fails validation.
var defaults = map[string]interface{}{
	"ui.color":                "2",
	"ui.color_mode":           "manual",
	"ui.max_width":            50,
	"thumbnail.enabled":       true,
	"thumbnail.format":        "png",
	"thumbnail.padding":       16,
	"thumbnail.width_pixels":  320,
	"thumbnail.width_columns": 14,
	"text.max_length":         30,
	"timing.ui_refresh_ms":    100,
	"timing.poll_ms":          500,
	"timing.query_timeout_ms": 2000,
	"source.remote_url":       "",
	"server.host":             "127.0.0.1",
	"server.port":             8787,
	"server.cors_origins":     []string{"*"},
	"osc.enabled":             false,
	"osc.host":                "127.0.0.1",
	"osc.port":                8000,
	"log.level":               "info",
	"log.file":                "",
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	cfg := sc.cfg
	cfg.Server.CORSOrigins = append([]string(nil), sc.cfg.Server.CORSOrigins...)
	return cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

var config = &SafeConfig{}

// Config file changed notification
type configReloadMsg struct{}

var configChangeChan = make(chan struct{}, 1)

// Watch for config file changes
func watchConfigCmd() tea.Cmd {
	return func() tea.Msg {
		<-configChangeChan
		return configReloadMsg{}
	}
}

// configError describes one invalid configuration field.
type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.message)
}

var (
	ansiColorPattern = regexp.MustCompile(`^[0-9]{1,3}$`)
	hexColorPattern  = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// isValidColor accepts ANSI codes 0-255 and #RGB / #RRGGBB hex colors.
func isValidColor(color string) bool {
	if ansiColorPattern.MatchString(color) {
		n, err := strconv.Atoi(color)
		return err == nil && n <= 255
	}
	return hexColorPattern.MatchString(color)
}

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// validateConfig checks every field and returns one configError per
// invalid field.
func validateConfig(cfg *Config) []error {
	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, configError{field: field, message: fmt.Sprintf(format, args...)})
	}

	if !isValidColor(cfg.UI.Color) {
		add("ui.color", "invalid color format '%s'", cfg.UI.Color)
	}
	if cfg.UI.ColorMode != "manual" && cfg.UI.ColorMode != "auto" {
		add("ui.color_mode", "must be 'manual' or 'auto' (got '%s')", cfg.UI.ColorMode)
	}
	if cfg.UI.MaxWidth < 30 || cfg.UI.MaxWidth > 200 {
		add("ui.max_width", "must be between 30 and 200 (got %d)", cfg.UI.MaxWidth)
	}

	if _, err := status.ExportFilter(cfg.Thumbnail.Format); err != nil {
		add("thumbnail.format", "%v", err)
	}
	if cfg.Thumbnail.Padding < 0 {
		add("thumbnail.padding", "must not be negative (got %d)", cfg.Thumbnail.Padding)
	} else if cfg.Thumbnail.Padding >= cfg.UI.MaxWidth && cfg.UI.MaxWidth >= 30 {
		add("thumbnail.padding", "must be less than ui.max_width (got %d)", cfg.Thumbnail.Padding)
	}
	if cfg.Thumbnail.WidthPixels < 16 || cfg.Thumbnail.WidthPixels > 2000 {
		add("thumbnail.width_pixels", "must be between 16 and 2000 (got %d)", cfg.Thumbnail.WidthPixels)
	}
	if cfg.Thumbnail.WidthColumns < 1 || cfg.Thumbnail.WidthColumns > 100 {
		add("thumbnail.width_columns", "must be between 1 and 100 (got %d)", cfg.Thumbnail.WidthColumns)
	}

	if cfg.Text.MaxLength < 5 || cfg.Text.MaxLength > 200 {
		add("text.max_length", "must be between 5 and 200 (got %d)", cfg.Text.MaxLength)
	}

	if cfg.Timing.UIRefreshMs < 10 || cfg.Timing.UIRefreshMs > 1000 {
		add("timing.ui_refresh_ms", "must be between 10 and 1000 (got %d)", cfg.Timing.UIRefreshMs)
	}
	if cfg.Timing.PollMs < 100 || cfg.Timing.PollMs > 60000 {
		add("timing.poll_ms", "must be between 100 and 60000 (got %d)", cfg.Timing.PollMs)
	}
	if cfg.Timing.QueryTimeoutMs < 0 || cfg.Timing.QueryTimeoutMs > 60000 {
		add("timing.query_timeout_ms", "must be between 0 and 60000 (got %d)", cfg.Timing.QueryTimeoutMs)
	}

	if cfg.Source.RemoteURL != "" {
		u, err := url.Parse(cfg.Source.RemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("source.remote_url", "must be an http(s) URL (got '%s')", cfg.Source.RemoteURL)
		}
	}

	if cfg.Server.Host == "" {
		add("server.host", "must not be empty")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		add("server.port", "must be between 1 and 65535 (got %d)", cfg.Server.Port)
	}
	if cfg.OSC.Host == "" {
		add("osc.host", "must not be empty")
	}
	if cfg.OSC.Port < 1 || cfg.OSC.Port > 65535 {
		add("osc.port", "must be between 1 and 65535 (got %d)", cfg.OSC.Port)
	}

	if !validLogLevel(cfg.Log.Level) {
		add("log.level", "must be one of debug, info, warn, error (got '%s')", cfg.Log.Level)
	}

	return errs
}

// applyDefaultsForInvalidFields resets every field named in errs to its default.
func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	for _, err := range errs {
		var ce configError
		if !errors.As(err, &ce) {
			continue
		}
		switch ce.field {
		case "ui.color":
			cfg.UI.Color = defaults[ce.field].(string)
		case "ui.color_mode":
			// Unknown modes fall back to auto.
			cfg.UI.ColorMode = "auto"
		case "ui.max_width":
			cfg.UI.MaxWidth = defaults[ce.field].(int)
		case "thumbnail.format":
			cfg.Thumbnail.Format = defaults[ce.field].(string)
		case "thumbnail.padding":
			cfg.Thumbnail.Padding = defaults[ce.field].(int)
		case "thumbnail.width_pixels":
			cfg.Thumbnail.WidthPixels = defaults[ce.field].(int)
		case "thumbnail.width_columns":
			cfg.Thumbnail.WidthColumns = defaults[ce.field].(int)
		case "text.max_length":
			cfg.Text.MaxLength = defaults[ce.field].(int)
		case "timing.ui_refresh_ms":
			cfg.Timing.UIRefreshMs = defaults[ce.field].(int)
		case "timing.poll_ms":
			cfg.Timing.PollMs = defaults[ce.field].(int)
		case "timing.query_timeout_ms":
			cfg.Timing.QueryTimeoutMs = defaults[ce.field].(int)
		case "source.remote_url":
			cfg.Source.RemoteURL = ""
		case "server.host":
			cfg.Server.Host = defaults[ce.field].(string)
		case "server.port":
			cfg.Server.Port = defaults[ce.field].(int)
		case "osc.host":
			cfg.OSC.Host = defaults[ce.field].(string)
		case "osc.port":
			cfg.OSC.Port = defaults[ce.field].(int)
		case "log.level":
			cfg.Log.Level = defaults[ce.field].(string)
		}
	}
	// Padding is checked against the width, so fix it again once the width is known.
	if cfg.Thumbnail.Padding >= cfg.UI.MaxWidth {
		cfg.Thumbnail.Padding = defaults["thumbnail.padding"].(int)
	}
}

// printConfigWarnings writes one line per invalid field to stderr.
func printConfigWarnings(errs []error) {
	if len(errs) == 0 {
		return
	}
	warn := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	fmt.Fprintln(os.Stderr, warn.Render("Warning: invalid configuration, using defaults for:"))
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "  - %v\n", err)
	}
}

// configDir returns $XDG_CONFIG_HOME/gopresenting, falling back to ~/.config.
func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "gopresenting")
}

// loadEnvFile loads .env from the working directory if present. Variables
// already set in the environment win.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// initConfig reads defaults, the config file, the environment and bound
// flags into v, validates the result and stores it in config. When watch is
// set the file is watched and reloads are published on configChangeChan.
func initConfig(v *viper.Viper, cfgFile string, watch bool) error {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("GOPRESENTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if cfgFile != "" {
				return fmt.Errorf("reading config file: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	cfg, errs, err := decodeConfig(v)
	if err != nil {
		return err
	}
	printConfigWarnings(errs)
	config.Set(cfg)

	if watch && v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			newCfg, errs, err := decodeConfig(v)
			if err != nil {
				logger.Warn("config reload failed", "file", e.Name, "err", err)
				return
			}
			for _, e := range errs {
				logger.Warn("invalid config value", "err", e)
			}
			config.Set(newCfg)
			applyLogLevel(newCfg)
			logger.Info("config reloaded", "file", e.Name)
			select {
			case configChangeChan <- struct{}{}:
			default:
			}
		})
		v.WatchConfig()
	}
	return nil
}

// decodeConfig unmarshals v and replaces invalid fields by their defaults.
func decodeConfig(v *viper.Viper) (Config, []error, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("parsing config: %w", err)
	}
	errs := validateConfig(&cfg)
	applyDefaultsForInvalidFields(&cfg, errs)
	return cfg, errs, nil
}
