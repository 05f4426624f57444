// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Forms    FormsConfig    `yaml:"forms"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the document store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres, memory
	URL    string `yaml:"url"`
}

// APIConfig points form sessions at a remote registry API. When BaseURL is
// empty, forms read and write the local database directly.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// FormsConfig tunes edit sessions.
type FormsConfig struct {
	NavigationDelay string `yaml:"navigation_delay"`
	SessionMaxAge   string `yaml:"session_max_age"`
	SessionIdle     string `yaml:"session_idle"`
	CleanupInterval string `yaml:"cleanup_interval"`
}

// EventsConfig configures the domain event bus.
type EventsConfig struct {
	Buffer int  `yaml:"buffer"`
	Audit  bool `yaml:"audit"` // persist events to the audit collection
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// MetricsConfig configures Prometheus.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "file:agroadmin.db?_pragma=busy_timeout(5000)",
		},
		API: APIConfig{
			Timeout: "30s",
		},
		Forms: FormsConfig{
			NavigationDelay: "2.5s",
			SessionMaxAge:   "24h",
			SessionIdle:     "30m",
			CleanupInterval: "1m",
		},
		Events: EventsConfig{
			Buffer: 256,
			Audit:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "agroadmin",
		},
	}
}

// Load loads configuration from a YAML file. An empty or missing path
// yields the defaults. Environment overrides apply in every case.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// ValidDrivers lists the supported database drivers.
var ValidDrivers = []string{"sqlite", "postgres", "memory"}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if !slices.Contains(ValidDrivers, c.Database.Driver) {
		return fmt.Errorf("unsupported database driver %q (valid: %v)", c.Database.Driver, ValidDrivers)
	}
	if c.Database.Driver != "memory" && c.Database.URL == "" {
		return fmt.Errorf("database.url is required for driver %q", c.Database.Driver)
	}
	for name, v := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"api.timeout":             c.API.Timeout,
		"forms.navigation_delay":  c.Forms.NavigationDelay,
		"forms.session_max_age":   c.Forms.SessionMaxAge,
		"forms.session_idle":      c.Forms.SessionIdle,
		"forms.cleanup_interval":  c.Forms.CleanupInterval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	return nil
}

func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetShutdownTimeout returns the graceful shutdown bound.
func (c *Config) GetShutdownTimeout() time.Duration {
	return duration(c.Server.ShutdownTimeout, 10*time.Second)
}

// GetAPITimeout returns the remote API request timeout.
func (c *Config) GetAPITimeout() time.Duration {
	return duration(c.API.Timeout, 30*time.Second)
}

// GetNavigationDelay returns how long a success message shows before navigating.
func (c *Config) GetNavigationDelay() time.Duration {
	return duration(c.Forms.NavigationDelay, 2500*time.Millisecond)
}

// GetSessionMaxAge returns the form session lifetime.
func (c *Config) GetSessionMaxAge() time.Duration {
	return duration(c.Forms.SessionMaxAge, 24*time.Hour)
}

// GetSessionIdle returns the form session idle timeout.
func (c *Config) GetSessionIdle() time.Duration {
	return duration(c.Forms.SessionIdle, 30*time.Minute)
}

// GetCleanupInterval returns how often expired sessions are swept.
func (c *Config) GetCleanupInterval() time.Duration {
	return duration(c.Forms.CleanupInterval, time.Minute)
}
