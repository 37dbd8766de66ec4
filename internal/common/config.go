// Package common provides shared utilities for bqlite
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for bqlite.
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Storage     StorageConfig   `toml:"storage"`
	Engines     EnginesConfig   `toml:"engines"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds the health-check HTTP listener configuration. No
// REST query surface is exposed here; submission happens through the
// in-process facade (see internal/service).
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SchedulerConfig holds slot-pool and admission-loop tuning.
type SchedulerConfig struct {
	TotalSlots   int    `toml:"total_slots"`
	TickInterval string `toml:"tick_interval"` // duration string, default "1s"
}

// GetTickInterval parses and returns the scheduler tick interval.
func (c *SchedulerConfig) GetTickInterval() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// StorageConfig holds the SurrealDB connection used by the schema
// registry and job history store.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// EnginesConfig holds per-adapter ExecutionEngine configuration.
type EnginesConfig struct {
	Local  LocalEngineConfig  `toml:"local"`
	Remote RemoteEngineConfig `toml:"remote"`
}

// LocalEngineConfig configures the in-process columnar adapter.
type LocalEngineConfig struct {
	Enabled bool `toml:"enabled"`
}

// RemoteEngineConfig configures the simulated remote cluster adapter.
type RemoteEngineConfig struct {
	Enabled          bool   `toml:"enabled"`
	SimulatedLatency string `toml:"simulated_latency"` // duration string, default "25ms"
}

// GetSimulatedLatency parses and returns the simulated network latency.
func (c *RemoteEngineConfig) GetSimulatedLatency() time.Duration {
	d, err := time.ParseDuration(c.SimulatedLatency)
	if err != nil {
		return 25 * time.Millisecond
	}
	return d
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Scheduler: SchedulerConfig{
			TotalSlots:   100,
			TickInterval: "1s",
		},
		Storage: StorageConfig{
			Address:   "ws://127.0.0.1:8000/rpc",
			Namespace: "bqlite",
			Database:  "bqlite",
		},
		Engines: EnginesConfig{
			Local:  LocalEngineConfig{Enabled: true},
			Remote: RemoteEngineConfig{Enabled: true, SimulatedLatency: "25ms"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/bqlite.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies BQLITE_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BQLITE_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("BQLITE_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("BQLITE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if slots := os.Getenv("BQLITE_TOTAL_SLOTS"); slots != "" {
		if n, err := strconv.Atoi(slots); err == nil {
			config.Scheduler.TotalSlots = n
		}
	}
	if tick := os.Getenv("BQLITE_TICK_INTERVAL"); tick != "" {
		config.Scheduler.TickInterval = tick
	}
	if level := os.Getenv("BQLITE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if addr := os.Getenv("BQLITE_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if ns := os.Getenv("BQLITE_STORAGE_NAMESPACE"); ns != "" {
		config.Storage.Namespace = ns
	}
	if db := os.Getenv("BQLITE_STORAGE_DATABASE"); db != "" {
		config.Storage.Database = db
	}
	if u := os.Getenv("BQLITE_STORAGE_USERNAME"); u != "" {
		config.Storage.Username = u
	}
	if p := os.Getenv("BQLITE_STORAGE_PASSWORD"); p != "" {
		config.Storage.Password = p
	}
	if lat := os.Getenv("BQLITE_REMOTE_LATENCY"); lat != "" {
		config.Engines.Remote.SimulatedLatency = lat
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
