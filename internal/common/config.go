// Package common provides shared utilities for Putscan
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Putscan
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Scan        ScanConfig      `toml:"scan"`
	Strategy    StrategyConfig  `toml:"strategy"`
	Discovery   DiscoveryConfig `toml:"options_discovery"`
	RateLimit   RateLimitConfig `toml:"rate_limiting"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the BadgerHold data directory.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD   EODHDConfig   `toml:"eodhd"`
	Tradier TradierConfig `toml:"tradier"`
	SimFin  SimFinConfig  `toml:"simfin"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// TradierConfig holds the options exchange API configuration
type TradierConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *TradierConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SimFinConfig holds the fundamentals feed configuration
type SimFinConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	RateLimit  int    `toml:"rate_limit"`
	Timeout    string `toml:"timeout"`
	BulkCSVDir string `toml:"bulk_csv_dir"`
}

// GetTimeout parses and returns the timeout duration
func (c *SimFinConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ScanConfig drives the daily scan schedule and universe fallback.
type ScanConfig struct {
	ScanTime      string   `toml:"scan_time"` // "HH:MM" local time, default "04:00"
	Watchlist     []string `toml:"watchlist"`
	RetentionDays int      `toml:"retention_days"`
	SymbolTimeout string   `toml:"symbol_timeout"` // per-symbol aggregation budget
}

// GetScanTime parses the configured daily trigger as hour and minute.
func (c *ScanConfig) GetScanTime() (hour, minute int, err error) {
	s := c.ScanTime
	if s == "" {
		s = "04:00"
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid scan_time %q: expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid scan_time hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid scan_time minute %q", parts[1])
	}
	return hour, minute, nil
}

// GetRetention returns the record retention window.
func (c *ScanConfig) GetRetention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetSymbolTimeout returns the per-symbol aggregation timeout.
func (c *ScanConfig) GetSymbolTimeout() time.Duration {
	d, err := time.ParseDuration(c.SymbolTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// StrategyConfig bounds the option expiry window and confidence floor.
type StrategyConfig struct {
	MinExpiryDays int     `toml:"min_expiry_days"`
	MaxExpiryDays int     `toml:"max_expiry_days"`
	MinConfidence float64 `toml:"min_confidence"`
}

// DiscoveryConfig controls the options-exchange universe discovery.
type DiscoveryConfig struct {
	Enabled                    bool `toml:"enabled"`
	MinOpenInterest            int  `toml:"min_open_interest"`
	MinVolume                  int  `toml:"min_volume"`
	SampleOptionsPerUnderlying int  `toml:"sample_options_per_underlying"`
	FallbackToWatchlist        bool `toml:"fallback_to_watchlist"`
	MaxExpiryDays              int  `toml:"max_expiry_days"`
}

// RateLimitConfig controls provider retry behaviour.
type RateLimitConfig struct {
	MaxRetries               int  `toml:"max_retries"`
	InitialRetryDelaySeconds int  `toml:"initial_retry_delay_seconds"`
	UseExponentialBackoff    bool `toml:"use_exponential_backoff"`
	AttemptTimeoutSeconds    int  `toml:"attempt_timeout_seconds"`
	EnableRetryOn429         bool `toml:"enable_retry_on_429"`
}

// GetAttemptTimeout returns the per-attempt provider call timeout.
func (c *RateLimitConfig) GetAttemptTimeout() time.Duration {
	if c.AttemptTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// GetInitialRetryDelay returns the first retry back-off delay.
func (c *RateLimitConfig) GetInitialRetryDelay() time.Duration {
	if c.InitialRetryDelaySeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.InitialRetryDelaySeconds) * time.Second
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a config with sensible defaults for local use.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8290,
		},
		Storage: StorageConfig{
			Path: "data/putscan",
		},
		Scan: ScanConfig{
			ScanTime:      "04:00",
			RetentionDays: 90,
			SymbolTimeout: "60s",
		},
		Strategy: StrategyConfig{
			MinExpiryDays: 7,
			MaxExpiryDays: 45,
			MinConfidence: 0.3,
		},
		Discovery: DiscoveryConfig{
			Enabled:                    true,
			MinOpenInterest:            100,
			MinVolume:                  10,
			SampleOptionsPerUnderlying: 4,
			FallbackToWatchlist:        true,
			MaxExpiryDays:              45,
		},
		RateLimit: RateLimitConfig{
			MaxRetries:               3,
			InitialRetryDelaySeconds: 2,
			UseExponentialBackoff:    true,
			AttemptTimeoutSeconds:    60,
			EnableRetryOn429:         true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the TOML config file, applies environment overrides,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides maps PUTSCAN_* environment variables onto the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PUTSCAN_ENV"); v != "" {
		config.Environment = v
	}
	if v := os.Getenv("PUTSCAN_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("PUTSCAN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("PUTSCAN_STORAGE_PATH"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("PUTSCAN_EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}
	if v := os.Getenv("PUTSCAN_TRADIER_API_KEY"); v != "" {
		config.Clients.Tradier.APIKey = v
	}
	if v := os.Getenv("PUTSCAN_SIMFIN_API_KEY"); v != "" {
		config.Clients.SimFin.APIKey = v
	}
	if v := os.Getenv("PUTSCAN_SCAN_TIME"); v != "" {
		config.Scan.ScanTime = v
	}
	if v := os.Getenv("PUTSCAN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// Validate rejects configurations that cannot produce a runnable scanner.
func (c *Config) Validate() error {
	if _, _, err := c.Scan.GetScanTime(); err != nil {
		return fmt.Errorf("fatal configuration error: %w", err)
	}
	if c.Strategy.MinExpiryDays < 0 || c.Strategy.MaxExpiryDays <= 0 {
		return fmt.Errorf("fatal configuration error: strategy expiry window [%d,%d] is invalid",
			c.Strategy.MinExpiryDays, c.Strategy.MaxExpiryDays)
	}
	if c.Strategy.MinExpiryDays > c.Strategy.MaxExpiryDays {
		return fmt.Errorf("fatal configuration error: min_expiry_days %d exceeds max_expiry_days %d",
			c.Strategy.MinExpiryDays, c.Strategy.MaxExpiryDays)
	}
	if c.Strategy.MinConfidence < 0 || c.Strategy.MinConfidence > 1 {
		return fmt.Errorf("fatal configuration error: min_confidence %.2f must be within [0,1]",
			c.Strategy.MinConfidence)
	}
	if !c.Discovery.Enabled && len(c.Scan.Watchlist) == 0 {
		return fmt.Errorf("fatal configuration error: discovery disabled and no watchlist configured")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("fatal configuration error: storage path is required")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
