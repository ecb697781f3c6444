// Package config loads ozcored's process-level configuration (SPEC_FULL
// §4.10): CLI flags and environment variables, distinct from the
// file-based openzap.conf/tones.conf/modules.conf family internal/confio
// reads. 1:1 shape of flowpbx's Load(): CLI flags > env vars > defaults.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Config holds the process-level runtime configuration for ozcored.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	ConfDir   string // directory containing openzap.conf/tones.conf/modules.conf
	LogLevel  string // debug, info, warn, error
	LogFormat string // log output format: "text" or "json"
	ModuleDir string // recorded but unused: dynamic module loading is out of scope
}

// defaults
const (
	defaultConfDir   = "/etc/openzap"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultModuleDir = "/usr/lib/openzap"
)

// envPrefix is the prefix for all ozcored environment variables.
const envPrefix = "OZ_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("ozcored", flag.ContinueOnError)

	fs.StringVar(&cfg.ConfDir, "conf-dir", defaultConfDir, "directory containing openzap.conf, tones.conf, modules.conf")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.ModuleDir, "module-dir", defaultModuleDir, "directory a real build would search for loadable driver modules")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"conf-dir":   envPrefix + "CONF_DIR",
		"log-level":  envPrefix + "LOG_LEVEL",
		"log-format": envPrefix + "LOG_FORMAT",
		"module-dir": envPrefix + "MODULE_DIR",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "conf-dir":
			cfg.ConfDir = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "module-dir":
			cfg.ModuleDir = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if c.ConfDir == "" {
		return fmt.Errorf("conf-dir must not be empty")
	}

	return nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
