package engine

import (
	"fmt"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/detector"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/storage"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/strategy"
)

// Storage backend names accepted by Config.Storage.
const (
	StorageMemory = "memory"
	StorageVault  = "vault"
	StorageRedis  = "redis"
)

// Config is the immutable per-engine configuration.
type Config struct {
	// Strategy selects the anonymization variant: hash_salt or embeddings.
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
	// Storage selects the mapping backend: memory, vault or redis.
	Storage string `yaml:"storage" mapstructure:"storage"`
	// EnableSignatures turns on HMAC signing of stored mappings.
	// SignatureSecret is required when set.
	EnableSignatures bool   `yaml:"enable_signatures" mapstructure:"enable_signatures"`
	SignatureSecret  string `yaml:"signature_secret" mapstructure:"signature_secret"`
	// EnableLogging turns on structured logging of engine operations.
	EnableLogging bool `yaml:"enable_logging" mapstructure:"enable_logging"`
	// CustomSalt overrides the generated hash-salt strategy salt.
	CustomSalt string `yaml:"custom_salt" mapstructure:"custom_salt"`

	Detector detector.Config       `yaml:"detector" mapstructure:"detector"`
	Memory   storage.MemoryConfig  `yaml:"memory" mapstructure:"memory"`
	Vault    storage.VaultConfig   `yaml:"vault" mapstructure:"vault"`
	Redis    storage.RedisConfig   `yaml:"redis" mapstructure:"redis"`
}

// withDefaults merges cfg over the engine defaults.
func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = strategy.NameHashSalt
	}
	if c.Storage == "" {
		c.Storage = StorageMemory
	}
	return c
}

// validate rejects malformed configurations before any collaborator is
// constructed.
func (c Config) validate() error {
	switch c.Strategy {
	case strategy.NameHashSalt, strategy.NameEmbeddings:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrValidation, c.Strategy)
	}

	switch c.Storage {
	case StorageMemory, StorageVault, StorageRedis:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrValidation, c.Storage)
	}

	if c.EnableSignatures && c.SignatureSecret == "" {
		return fmt.Errorf("%w: signature_secret is required when signatures are enabled", ErrValidation)
	}

	return nil
}
