package config

import (
	"testing"
)

func TestGetDefaults(t *testing.T) {
	cfg := GetDefaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Engine.Strategy != "hash_salt" {
		t.Errorf("Expected hash_salt default strategy, got %s", cfg.Engine.Strategy)
	}
	if cfg.Engine.Storage != "memory" {
		t.Errorf("Expected memory default storage, got %s", cfg.Engine.Storage)
	}
	if cfg.Audit.Enabled {
		t.Error("Audit should be disabled by default")
	}
	if !cfg.Events.Enabled {
		t.Error("Events should be enabled by default")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return GetDefaults() }

	t.Run("InvalidPort", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		if err := Validate(cfg); err == nil {
			t.Error("Expected error for port 0")
		}
		cfg.Server.Port = 70000
		if err := Validate(cfg); err == nil {
			t.Error("Expected error for port above range")
		}
	})

	t.Run("InvalidStrategy", func(t *testing.T) {
		cfg := valid()
		cfg.Engine.Strategy = "magic"
		if err := Validate(cfg); err == nil {
			t.Error("Expected error for unknown strategy")
		}
	})

	t.Run("InvalidStorage", func(t *testing.T) {
		cfg := valid()
		cfg.Engine.Storage = "tape"
		if err := Validate(cfg); err == nil {
			t.Error("Expected error for unknown storage backend")
		}
	})

	t.Run("SignaturesRequireSecret", func(t *testing.T) {
		cfg := valid()
		cfg.Engine.EnableSignatures = true
		if err := Validate(cfg); err == nil {
			t.Error("Expected error when signatures are enabled without a secret")
		}
		cfg.Engine.SignatureSecret = "secret"
		if err := Validate(cfg); err != nil {
			t.Errorf("Expected valid config with secret, got %v", err)
		}
	})

	t.Run("AuditRequiresDatabaseURL", func(t *testing.T) {
		cfg := valid()
		cfg.Audit.Enabled = true
		if err := Validate(cfg); err == nil {
			t.Error("Expected error when audit is enabled without a database URL")
		}
		cfg.Audit.DatabaseURL = "postgres://localhost/audit"
		if err := Validate(cfg); err != nil {
			t.Errorf("Expected valid config with database URL, got %v", err)
		}
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "verbose"
		if err := Validate(cfg); err == nil {
			t.Error("Expected error for unknown log level")
		}
	})

	t.Run("InvalidLogFormat", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Format = "xml"
		if err := Validate(cfg); err == nil {
			t.Error("Expected error for unknown log format")
		}
	})
}
