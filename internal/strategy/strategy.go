package strategy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Strategy names accepted by the factory.
const (
	NameHashSalt   = "hash_salt"
	NameEmbeddings = "embeddings"
)

// ErrInvalidToken indicates a token that cannot be anonymized.
var ErrInvalidToken = errors.New("invalid token")

// Strategy turns one detected token into one proxy token. Implementations
// must be deterministic for the life of the instance: the same token always
// yields the same proxy, so later references to already-anonymized content
// resolve to the same mapping entry.
type Strategy interface {
	// Anonymize returns the proxy token for token. The context is honored by
	// implementations that reach out to an external backend; both shipped
	// variants are synchronous.
	Anonymize(ctx context.Context, token string) (string, error)

	// BatchAnonymize is a convenience over Anonymize for multiple tokens.
	BatchAnonymize(ctx context.Context, tokens []string) ([]string, error)

	// IsReversible reports whether distinct inputs are guaranteed distinct
	// proxies, making the stored mapping a faithful inverse.
	IsReversible() bool

	// Info returns metadata describing the strategy instance.
	Info() Info
}

// Info describes a strategy instance.
type Info struct {
	Name       string            `json:"name"`
	Reversible bool              `json:"reversible"`
	Details    map[string]string `json:"details,omitempty"`
}

// New constructs the strategy selected by name. customSalt applies to the
// hash-salt variant only; when empty a per-instance salt is generated.
func New(name, customSalt string, logger *zap.Logger) (Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch name {
	case NameHashSalt:
		return NewHashSalt(customSalt, logger)
	case NameEmbeddings:
		return NewFeatureHash(logger), nil
	default:
		return nil, fmt.Errorf("unknown anonymization strategy: %s", name)
	}
}

func batchAnonymize(ctx context.Context, s Strategy, tokens []string) ([]string, error) {
	proxies := make([]string, 0, len(tokens))
	for _, token := range tokens {
		proxy, err := s.Anonymize(ctx, token)
		if err != nil {
			return nil, err
		}
		proxies = append(proxies, proxy)
	}
	return proxies, nil
}
