package strategy

import (
	"context"
	"fmt"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/crypto"
	"go.uber.org/zap"
)

const (
	hashSaltPrefix = "anon_"
	hashSliceLen   = 16
)

// HashSalt anonymizes tokens with a salted SHA-256 digest. The hash itself
// is one-way; the strategy is reversible only through the side-channel
// mapping the engine stores alongside the anonymized text.
type HashSalt struct {
	salt   string
	custom bool
	logger *zap.Logger
}

// NewHashSalt creates a hash-salt strategy. When customSalt is empty a salt
// is generated once and kept for the life of the instance, so unrelated calls
// on the same engine produce the same proxy for the same token.
func NewHashSalt(customSalt string, logger *zap.Logger) (*HashSalt, error) {
	salt := customSalt
	custom := customSalt != ""
	if !custom {
		generated, err := crypto.GenerateSalt()
		if err != nil {
			return nil, fmt.Errorf("failed to generate strategy salt: %w", err)
		}
		salt = generated
	}

	logger.Debug("Hash-salt strategy initialized", zap.Bool("custom_salt", custom))

	return &HashSalt{salt: salt, custom: custom, logger: logger}, nil
}

// Anonymize returns anon_ followed by the first 16 base64 characters of
// SHA256(token||salt), with non-alphanumeric characters stripped from that
// slice.
func (s *HashSalt) Anonymize(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: token cannot be empty", ErrInvalidToken)
	}

	hash := crypto.HashWithSalt(token, s.salt)
	return crypto.FormatProxyToken(hashSaltPrefix, hash[:hashSliceLen], hashSliceLen), nil
}

// BatchAnonymize anonymizes tokens in order.
func (s *HashSalt) BatchAnonymize(ctx context.Context, tokens []string) ([]string, error) {
	return batchAnonymize(ctx, s, tokens)
}

// IsReversible always reports true for the hash-salt strategy.
func (s *HashSalt) IsReversible() bool { return true }

// Info returns strategy metadata.
func (s *HashSalt) Info() Info {
	return Info{
		Name:       NameHashSalt,
		Reversible: true,
		Details: map[string]string{
			"hash":        "sha256",
			"custom_salt": fmt.Sprintf("%t", s.custom),
		},
	}
}
