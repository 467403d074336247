package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values come from defaults, an optional YAML file and RELAY_* environment
// variables, merged by viper and decoded here.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Workers   int             `mapstructure:"workers"`
}

// APIConfig describes the upstream REST API and the credential used for it.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	WebURL    string        `mapstructure:"web_url"`
	Token     string        `mapstructure:"token"`
	Bot       bool          `mapstructure:"bot"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// Proxy is an optional http(s) proxy URL for every request
	Proxy string `mapstructure:"proxy"`
}

// RateLimitConfig controls the dispatcher's retry and pacing behavior
type RateLimitConfig struct {
	// MaxAttempts is the attempt budget per request
	MaxAttempts int `mapstructure:"max_attempts"`

	// GlobalRate paces every attempt in requests per second; 0 disables pacing
	GlobalRate  float64 `mapstructure:"global_rate"`
	GlobalBurst int     `mapstructure:"global_burst"`

	// ReleaseOverrides maps "METHOD /template" to a fixed bucket release delay
	ReleaseOverrides map[string]time.Duration `mapstructure:"release_overrides"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}
