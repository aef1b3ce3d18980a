package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// mappingSubPath is the fixed sub-path under the configured mount where
// mapping records live.
const mappingSubPath = "anon-proxy-mappings"

// VaultConfig configures the HashiCorp Vault backend.
type VaultConfig struct {
	Address       string        `yaml:"address" mapstructure:"address"`
	Token         string        `yaml:"token" mapstructure:"token"`
	MountPath     string        `yaml:"mount_path" mapstructure:"mount_path"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify" mapstructure:"tls_skip_verify"`
}

// Vault persists mapping records in an external HashiCorp Vault server under
// <mount>/anon-proxy-mappings/<id>. A 404 from the server is translated to
// "absent" rather than propagated as an error.
type Vault struct {
	client *vaultapi.Client
	mount  string
	logger *zap.Logger
}

// NewVault creates the Vault backend and its client.
func NewVault(cfg VaultConfig, logger *zap.Logger) (*Vault, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	apiCfg := vaultapi.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	if cfg.Timeout > 0 {
		apiCfg.Timeout = cfg.Timeout
	}
	if cfg.TLSSkipVerify {
		if err := apiCfg.ConfigureTLS(&vaultapi.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("%w: failed to configure TLS: %v", ErrStorage, err)
		}
	}

	client, err := vaultapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create vault client: %v", ErrStorage, err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := strings.Trim(cfg.MountPath, "/")
	if mount == "" {
		mount = "secret"
	}

	logger.Debug("Vault storage initialized",
		zap.String("address", apiCfg.Address),
		zap.String("mount", mount),
	)

	return &Vault{client: client, mount: mount, logger: logger}, nil
}

func (v *Vault) path(id string) string {
	return fmt.Sprintf("%s/%s/%s", v.mount, mappingSubPath, id)
}

// Store serializes data as a plain key-ordered object and writes it.
func (v *Vault) Store(ctx context.Context, id string, data *MappingData) error {
	if id == "" {
		return fmt.Errorf("%w: empty mapping id", ErrStorage)
	}
	if data == nil {
		return fmt.Errorf("%w: nil mapping data", ErrStorage)
	}

	mappings := make(map[string]interface{}, len(data.Mappings))
	for proxy, original := range data.Mappings {
		mappings[proxy] = original
	}

	payload := map[string]interface{}{
		"id":        id,
		"mappings":  mappings,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"strategy":  data.Strategy,
	}
	if data.Signature != "" {
		payload["signature"] = data.Signature
	}

	if _, err := v.client.Logical().WriteWithContext(ctx, v.path(id), payload); err != nil {
		return fmt.Errorf("%w: vault write failed: %v", ErrStorage, err)
	}
	return nil
}

// Retrieve reads and reconstructs the record stored under id.
func (v *Vault) Retrieve(ctx context.Context, id string) (*MappingData, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.path(id))
	if err != nil {
		if isVaultNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: vault read failed: %v", ErrStorage, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrNotFound
	}

	record := &MappingData{
		ID:       id,
		Mappings: make(map[string]string),
	}

	if raw, ok := secret.Data["mappings"].(map[string]interface{}); ok {
		for proxy, original := range raw {
			value, ok := original.(string)
			if !ok {
				return nil, fmt.Errorf("%w: invalid mapping entry for %s", ErrStorage, id)
			}
			record.Mappings[proxy] = value
		}
	}
	if raw, ok := secret.Data["createdAt"].(string); ok {
		createdAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid createdAt for %s", ErrStorage, id)
		}
		record.CreatedAt = createdAt
	}
	if raw, ok := secret.Data["signature"].(string); ok {
		record.Signature = raw
	}
	if raw, ok := secret.Data["strategy"].(string); ok {
		record.Strategy = raw
	}

	return record, nil
}

// Delete removes the record under id; an already-gone record is not an error.
func (v *Vault) Delete(ctx context.Context, id string) error {
	if _, err := v.client.Logical().DeleteWithContext(ctx, v.path(id)); err != nil {
		if isVaultNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: vault delete failed: %v", ErrStorage, err)
	}
	return nil
}

// Clear lists every stored mapping id and deletes them one by one.
func (v *Vault) Clear(ctx context.Context) error {
	listPath := fmt.Sprintf("%s/%s", v.mount, mappingSubPath)
	secret, err := v.client.Logical().ListWithContext(ctx, listPath)
	if err != nil {
		if isVaultNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: vault list failed: %v", ErrStorage, err)
	}
	if secret == nil || secret.Data == nil {
		return nil
	}

	keys, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil
	}

	for _, key := range keys {
		id, ok := key.(string)
		if !ok {
			continue
		}
		if err := v.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck requires the server to be unsealed and our mount to exist.
func (v *Vault) HealthCheck(ctx context.Context) bool {
	health, err := v.client.Sys().HealthWithContext(ctx)
	if err != nil || health.Sealed {
		return false
	}

	mounts, err := v.client.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return false
	}
	_, ok := mounts[v.mount+"/"]
	return ok
}

// Close is a no-op: the Vault client holds no resources beyond pooled HTTP
// connections, which are reclaimed by the runtime.
func (v *Vault) Close() error { return nil }

// isVaultNotFound reports whether err is an HTTP 404 from the Vault API.
func isVaultNotFound(err error) bool {
	var respErr *vaultapi.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
