// Package config provides configuration management.
package config

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"transport-cost/core/types"
	"transport-cost/internal/errors"
	"transport-cost/internal/logging"
)

// Environment variables that override file settings
const (
	EnvDBDriver        = "TRANSPORT_COST_DB_DRIVER"
	EnvDBDSN           = "TRANSPORT_COST_DB_DSN"
	EnvLogLevel        = "TRANSPORT_COST_LOG_LEVEL"
	EnvSchemaFile      = "TRANSPORT_COST_SCHEMA_FILE"
	EnvProviderTimeout = "TRANSPORT_COST_PROVIDER_TIMEOUT"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Currency is the quote currency
	Currency types.Currency `json:"currency"`

	// Database selects the storage backend
	Database DatabaseConfig `json:"database"`

	// Provider tunes calls to the segment provider
	Provider ProviderConfig `json:"provider"`

	// Timeline configures route building
	Timeline TimelineConfig `json:"timeline"`

	// Rates points at the rate schema file
	Rates RatesConfig `json:"rates"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// DatabaseConfig selects the storage backend
type DatabaseConfig struct {
	// Driver is memory, sqlite or postgres
	Driver string `json:"driver"`

	// DSN is a file path for sqlite or a connection URL for postgres
	DSN string `json:"dsn,omitempty"`
}

// ProviderConfig contains retry settings for the segment provider
type ProviderConfig struct {
	TimeoutSeconds   int `json:"timeout_seconds"`
	MaxAttempts      int `json:"max_attempts"`
	InitialBackoffMs int `json:"initial_backoff_ms"`
}

// Timeout returns the per-attempt timeout
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry delay
func (p ProviderConfig) InitialBackoff() time.Duration {
	return time.Duration(p.InitialBackoffMs) * time.Millisecond
}

// TimelineConfig contains route building settings
type TimelineConfig struct {
	// RestPolicy is midpoint or interval
	RestPolicy string `json:"rest_policy"`

	// RestIntervalHours is the driving time between rests for the interval policy
	RestIntervalHours float64 `json:"rest_interval_hours"`

	// EventDurationHours is the length of every stop
	EventDurationHours float64 `json:"event_duration_hours"`
}

// RatesConfig locates the HCL rate file
type RatesConfig struct {
	// SchemaFile is optional; built-in tables apply when empty
	SchemaFile string `json:"schema_file,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version:  "1.0",
		Currency: types.CurrencyEUR,
		Database: DatabaseConfig{
			Driver: "memory",
		},
		Provider: ProviderConfig{
			TimeoutSeconds:   10,
			MaxAttempts:      4,
			InitialBackoffMs: 200,
		},
		Timeline: TimelineConfig{
			RestPolicy:         "midpoint",
			RestIntervalHours:  4.5,
			EventDurationHours: 1,
		},
		Logging: logging.DefaultConfig(),
	}
}

// DefaultPath returns ~/.transport-cost/config.json
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".transport-cost", "config.json")
}

// DefaultSQLitePath returns ~/.transport-cost/transport-cost.db
func DefaultSQLitePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".transport-cost", "transport-cost.db")
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Config("read config file", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Config("parse config file "+path, err)
	}

	return config, nil
}

// LoadWithEnv loads the file, then a .env file from the working directory
// (if present), then applies TRANSPORT_COST_* variables on top.
func LoadWithEnv(path string) (*Config, error) {
	config, err := Load(path)
	if err != nil {
		return nil, err
	}
	loadDotEnv(".env", logging.Named("config"))

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, config.Validate()
}

// loadDotEnv loads path into the process environment. A missing file is
// fine since variables may come from the real environment.
func loadDotEnv(path string, logger *zap.Logger) bool {
	if err := godotenv.Load(path); err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			logger.Debug(".env not loaded", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	return true
}

// ApplyEnv overrides fields from the environment
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDBDriver); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := lookup(EnvDBDSN); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvSchemaFile); ok && v != "" {
		c.Rates.SchemaFile = v
	}
	if v, ok := lookup(EnvProviderTimeout); ok && v != "" {
		secs, err := parseSeconds(v)
		if err != nil {
			return errors.Config(EnvProviderTimeout+" must be seconds or a duration", err)
		}
		c.Provider.TimeoutSeconds = secs
	}
	return nil
}

// parseSeconds accepts "30" or "30s"
func parseSeconds(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "", "memory":
	case "sqlite", "sqlite3":
		if c.Database.DSN == "" {
			c.Database.DSN = DefaultSQLitePath()
		}
	case "postgres", "postgresql", "pgx":
		if c.Database.DSN == "" {
			return errors.Config("database.dsn is required for postgres", nil)
		}
	default:
		return errors.Newf(errors.TypeConfig, "unsupported database driver %q", c.Database.Driver)
	}
	if c.Provider.TimeoutSeconds <= 0 {
		return errors.Config("provider.timeout_seconds must be positive", nil)
	}
	if c.Provider.MaxAttempts <= 0 {
		return errors.Config("provider.max_attempts must be positive", nil)
	}
	if c.Timeline.EventDurationHours < 0 {
		return errors.Config("timeline.event_duration_hours must not be negative", nil)
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
