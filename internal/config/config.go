// Package config loads wisepal configuration.
//
// Sources, lowest to highest precedence:
//   - built-in defaults
//   - ~/.wisepal/config.toml (or the path given with --config)
//   - environment variables (WISEPAL_API_URL, NEXT_PUBLIC_API_URL, WISEPAL_STATE_DIR, WISEPAL_LOG_LEVEL)
//
// The API base URL has no default. A config without one fails validation
// with ErrMissingAPIURL before any request is issued.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrMissingAPIURL is returned when no API base URL could be resolved
var ErrMissingAPIURL = errors.New("API base URL is not configured (set WISEPAL_API_URL)")

// Config is the complete wisepal configuration
type Config struct {
	APIURL            string  `toml:"api_url"`
	StateDir          string  `toml:"state_dir"`
	HTTPTimeoutSecs   int     `toml:"http_timeout_secs"`
	RequestsPerSecond float64 `toml:"requests_per_second"`

	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	UI        UIConfig        `toml:"ui"`
}

// LogConfig controls the rotating log file
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// TelemetryConfig controls OpenTelemetry trace and metric export
type TelemetryConfig struct {
	Enabled bool `toml:"enabled"`
}

// UIConfig controls terminal rendering
type UIConfig struct {
	RenderMarkdown bool `toml:"render_markdown"`
}

// Default returns the built-in configuration. APIURL is intentionally empty.
func Default() *Config {
	return &Config{
		HTTPTimeoutSecs: 60,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UIConfig{
			RenderMarkdown: true,
		},
	}
}

// DefaultStateDir returns ~/.wisepal
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".wisepal"), nil
}

// Load reads the config file at path (or the default location when path is
// empty), applies environment overrides and then overrides, fills defaults
// and validates. A missing default config file is not an error.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		dir, err := DefaultStateDir()
		if err == nil {
			path = filepath.Join(dir, "config.toml")
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		} else if explicit {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file on top of cfg
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides.
// NEXT_PUBLIC_API_URL is accepted for parity with the web deployment and
// loses to WISEPAL_API_URL when both are set.
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("NEXT_PUBLIC_API_URL"); u != "" {
		c.APIURL = u
	}
	if u := os.Getenv("WISEPAL_API_URL"); u != "" {
		c.APIURL = u
	}
	if dir := os.Getenv("WISEPAL_STATE_DIR"); dir != "" {
		c.StateDir = dir
	}
	if level := os.Getenv("WISEPAL_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// SetDefaults fills zero values that depend on the environment
func (c *Config) SetDefaults() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")

	if c.StateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return err
		}
		c.StateDir = dir
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.StateDir, "logs", "wisepal.log")
	}
	if c.HTTPTimeoutSecs == 0 {
		c.HTTPTimeoutSecs = 60
	}
	return nil
}

// ValidationError describes one invalid field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every validation failure
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate checks the configuration. A missing API URL is reported as
// ErrMissingAPIURL on its own since nothing else matters without it.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return ErrMissingAPIURL
	}

	var errs ValidateErrors
	if u, err := url.Parse(c.APIURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{Field: "api_url", Message: fmt.Sprintf("%q is not an http(s) URL", c.APIURL)})
	}
	if c.HTTPTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "http_timeout_secs", Message: "must not be negative"})
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "requests_per_second", Message: "must not be negative"})
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// HTTPTimeout returns the transport timeout
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSecs) * time.Second
}

// DatabasePath is the DuckDB file holding the session token and transcript
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StateDir, "wisepal.duckdb")
}
