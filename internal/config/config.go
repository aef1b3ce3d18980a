package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/anonproxy/")
	viper.AddConfigPath("$HOME/.anonproxy/")

	viper.SetEnvPrefix("ANONPROXY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate rejects configurations the server cannot run with.
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Engine.Strategy {
	case "hash_salt", "embeddings":
	default:
		return fmt.Errorf("invalid strategy: %s (must be hash_salt or embeddings)", config.Engine.Strategy)
	}

	switch config.Engine.Storage {
	case "memory", "vault", "redis":
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory, vault, or redis)", config.Engine.Storage)
	}

	if config.Engine.EnableSignatures && config.Engine.SignatureSecret == "" {
		return fmt.Errorf("signature_secret is required when enable_signatures is set")
	}

	if config.Audit.Enabled && config.Audit.DatabaseURL == "" {
		return fmt.Errorf("audit database_url is required when audit is enabled")
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes.
func Watch(callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			return
		}
		if err := Validate(newConfig); err != nil {
			return
		}
		callback(newConfig)
	})

	return nil
}
