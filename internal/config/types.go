package config

import (
	"time"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/audit"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/engine"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/events"
)

// Config represents the main configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Engine  engine.Config `yaml:"engine" mapstructure:"engine"`
	Audit   audit.Config  `yaml:"audit" mapstructure:"audit"`
	Events  events.Config `yaml:"events" mapstructure:"events"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit    struct {
		Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
		Burst          int  `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults: memory
// storage, hash-salt strategy, signatures off, audit off.
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Engine: engine.Config{
			Strategy: "hash_salt",
			Storage:  "memory",
		},
		Events: events.Config{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			PingInterval:   54 * time.Second,
			PongTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxMessageSize: 512,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMin = 300
	cfg.Server.RateLimit.Burst = 50
	return cfg
}
