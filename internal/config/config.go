// Package config loads the job queue service's runtime configuration with
// viper, with precedence runtime overrides > environment variables >
// defaults. There is no workspace-root-discovery step: a single-binary
// service has no monorepo tooling to locate.
package config

import "time"

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls internal/observability.Init.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// MetricsConfig holds the metrics settings. Nothing in this repository
// reads them; no metrics endpoint is served.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig controls the /health family of endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig holds the developer-only debug settings. Nothing in this
// repository reads them; no pprof or other debug endpoint is served.
type DebugConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// StoreConfig selects and configures the job store backend; it is handed
// directly to jobstore.Config.
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// Config is the fully resolved runtime configuration for jobqueued.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Debug   DebugConfig   `mapstructure:"debug"`
	Workers int           `mapstructure:"workers"`
	Store   StoreConfig   `mapstructure:"store"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8314,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Profile: "STRUCTURED",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Health: HealthConfig{
			Enabled: true,
		},
		Debug: DebugConfig{
			Enabled:      false,
			PprofEnabled: false,
		},
		Workers: 4,
		Store: StoreConfig{
			Path: "jobqueue.db",
		},
	}
}
