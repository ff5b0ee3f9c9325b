package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Analytics AnalyticsConfig `json:"analytics"`
	Recalc    RecalcConfig    `json:"recalc"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	// Path to the sqlite file. Empty means ~/.cyclingdatahub/data.db.
	Path string `json:"path"`
}

// AnalyticsConfig holds baseline resolution settings
type AnalyticsConfig struct {
	FTPLookbackDays int `json:"ftp_lookback_days"`
	DefaultFTP      int `json:"default_ftp"`
	DefaultMaxHR    int `json:"default_max_hr"`
}

// RecalcConfig holds recalculation scheduler settings
type RecalcConfig struct {
	BatchSize int `json:"batch_size"`
	Workers   int `json:"workers"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Analytics: AnalyticsConfig{
			FTPLookbackDays: 90,
			DefaultFTP:      200,
			DefaultMaxHR:    185,
		},
		Recalc: RecalcConfig{
			BatchSize: 50,
			Workers:   4,
		},
	}
}

// Load reads the configuration from ~/.cyclingdatahub/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if cfg.Analytics.FTPLookbackDays == 0 {
		cfg.Analytics.FTPLookbackDays = defaults.Analytics.FTPLookbackDays
	}
	if cfg.Analytics.DefaultFTP == 0 {
		cfg.Analytics.DefaultFTP = defaults.Analytics.DefaultFTP
	}
	if cfg.Analytics.DefaultMaxHR == 0 {
		cfg.Analytics.DefaultMaxHR = defaults.Analytics.DefaultMaxHR
	}
	if cfg.Recalc.BatchSize == 0 {
		cfg.Recalc.BatchSize = defaults.Recalc.BatchSize
	}
	if cfg.Recalc.Workers == 0 {
		cfg.Recalc.Workers = defaults.Recalc.Workers
	}

	return &cfg, nil
}

// Save writes the configuration to ~/.cyclingdatahub/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates a config file with defaults if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	return Save(&example)
}

// Validate checks if the config values are usable
func (c *Config) Validate() error {
	if c.Analytics.FTPLookbackDays < 1 {
		return fmt.Errorf("analytics.ftp_lookback_days must be at least 1, got %d", c.Analytics.FTPLookbackDays)
	}
	if c.Analytics.DefaultFTP < 1 {
		return fmt.Errorf("analytics.default_ftp must be positive, got %d", c.Analytics.DefaultFTP)
	}
	if c.Analytics.DefaultMaxHR < 1 {
		return fmt.Errorf("analytics.default_max_hr must be positive, got %d", c.Analytics.DefaultMaxHR)
	}
	if c.Recalc.BatchSize < 1 {
		return fmt.Errorf("recalc.batch_size must be at least 1, got %d", c.Recalc.BatchSize)
	}
	if c.Recalc.Workers < 1 {
		return fmt.Errorf("recalc.workers must be at least 1, got %d", c.Recalc.Workers)
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".cyclingdatahub", "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".cyclingdatahub"), nil
}
