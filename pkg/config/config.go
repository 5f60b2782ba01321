// Package config loads server configuration from an optional YAML file with
// environment variable overrides. Invalid values are fatal at startup; the
// retention engine never sees an unvalidated config.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults for every option.
const (
	DefaultListenAddr             = ":8080"
	DefaultRecentHistorySize      = 180
	DefaultConsolidationLimit     = 20
	DefaultUpdateFrequencySeconds = 3
	DefaultPersistHistory         = true
	DefaultHistoryFilesDirectory  = "./stats_history"
	DefaultHistoryFilesMaxSize    = 2_000_000
	DefaultHistoryBackend         = BackendSegment
)

// Supported persistent history backends.
const (
	BackendSegment = "segment"
	BackendBadger  = "badger"
)

// Config holds all server options.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	Debug      bool   `yaml:"debug"`

	// Retention tiers.
	RecentHistorySize      int `yaml:"recent_history_size"`
	ConsolidationLimit     int `yaml:"consolidation_limit"`
	UpdateFrequencySeconds int `yaml:"update_frequency_seconds"`

	// Persistent history.
	PersistHistory          bool   `yaml:"persist_history"`
	HistoryFilesDirectory   string `yaml:"history_files_directory"`
	HistoryFilesMaxSizeByte int64  `yaml:"history_files_max_size_bytes"`
	HistoryBackend          string `yaml:"history_backend"`
}

// Default returns a config populated with every default value.
func Default() Config {
	return Config{
		ListenAddr:              DefaultListenAddr,
		RecentHistorySize:       DefaultRecentHistorySize,
		ConsolidationLimit:      DefaultConsolidationLimit,
		UpdateFrequencySeconds:  DefaultUpdateFrequencySeconds,
		PersistHistory:          DefaultPersistHistory,
		HistoryFilesDirectory:   DefaultHistoryFilesDirectory,
		HistoryFilesMaxSizeByte: DefaultHistoryFilesMaxSize,
		HistoryBackend:          DefaultHistoryBackend,
	}
}

// Load reads the config file at path (missing file means all defaults),
// applies SYSOBS_* environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file: defaults plus env overrides.
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every option is in range.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.RecentHistorySize < 1 {
		return fmt.Errorf("recent_history_size must be at least 1, got %d", c.RecentHistorySize)
	}
	if c.ConsolidationLimit < 1 {
		return fmt.Errorf("consolidation_limit must be at least 1, got %d", c.ConsolidationLimit)
	}
	if c.UpdateFrequencySeconds < 1 {
		return fmt.Errorf("update_frequency_seconds must be at least 1, got %d", c.UpdateFrequencySeconds)
	}
	if c.PersistHistory {
		if c.HistoryFilesDirectory == "" {
			return fmt.Errorf("history_files_directory must not be empty when persist_history is enabled")
		}
		if c.HistoryFilesMaxSizeByte < 1 {
			return fmt.Errorf("history_files_max_size_bytes must be positive, got %d", c.HistoryFilesMaxSizeByte)
		}
		if c.HistoryBackend != BackendSegment && c.HistoryBackend != BackendBadger {
			return fmt.Errorf("history_backend must be %q or %q, got %q", BackendSegment, BackendBadger, c.HistoryBackend)
		}
	}
	return nil
}

// applyEnvOverrides overrides config values from SYSOBS_* variables. Values
// that fail to parse are ignored so a bad env var cannot mask the file value.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYSOBS_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := envBool("SYSOBS_DEBUG"); ok {
		cfg.Debug = v
	}
	if v, ok := envInt("SYSOBS_RECENT_HISTORY_SIZE"); ok {
		cfg.RecentHistorySize = v
	}
	if v, ok := envInt("SYSOBS_CONSOLIDATION_LIMIT"); ok {
		cfg.ConsolidationLimit = v
	}
	if v, ok := envInt("SYSOBS_UPDATE_FREQUENCY_SECONDS"); ok {
		cfg.UpdateFrequencySeconds = v
	}
	if v, ok := envBool("SYSOBS_PERSIST_HISTORY"); ok {
		cfg.PersistHistory = v
	}
	if v := os.Getenv("SYSOBS_HISTORY_FILES_DIRECTORY"); v != "" {
		cfg.HistoryFilesDirectory = v
	}
	if v, ok := envInt64("SYSOBS_HISTORY_FILES_MAX_SIZE_BYTES"); ok {
		cfg.HistoryFilesMaxSizeByte = v
	}
	if v := os.Getenv("SYSOBS_HISTORY_BACKEND"); v != "" {
		cfg.HistoryBackend = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func envInt64(key string) (int64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return parsed, true
}
