package strategy

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"unicode"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/crypto"
	"go.uber.org/zap"
)

const (
	featureHashPrefix = "sem_"
	featureHashLen    = 12

	// featureModelName and featureDimensions identify this stand-in model.
	// They salt the feature hash so a future model swap changes every proxy.
	featureModelName  = "feature-hash-v1"
	featureDimensions = 384

	// maxFeatureLength caps the length feature so extreme inputs do not
	// dominate the serialized record.
	maxFeatureLength = 100
)

// Token class patterns, checked in fixed order. The first match wins.
var (
	classUUID   = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	classBase64 = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
	classHex    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	classEmail  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	classPhone  = regexp.MustCompile(`^\+?[\d\s\-().]{7,}$`)
	classAPIKey = regexp.MustCompile(`^[A-Za-z0-9_\-]{16,}$`)
)

// FeatureHash is the placeholder "embeddings" strategy: it reduces a token to
// a small deterministic feature record and hashes it. Tokens with identical
// features collapse to the same proxy even when the underlying values differ,
// which is why the strategy declares itself irreversible. Restoration relies
// entirely on the mapping the engine stores.
type FeatureHash struct {
	logger *zap.Logger
}

// NewFeatureHash creates the feature-hash strategy.
func NewFeatureHash(logger *zap.Logger) *FeatureHash {
	logger.Debug("Feature-hash strategy initialized",
		zap.String("model", featureModelName),
		zap.Int("dimensions", featureDimensions),
	)
	return &FeatureHash{logger: logger}
}

// tokenFeatures is the deterministic feature record extracted from a token.
type tokenFeatures struct {
	length     int
	hasDigit   bool
	hasSpecial bool
	allUpper   bool
	allLower   bool
	entropy    float64
	class      string
}

// Anonymize returns sem_ followed by the first 12 alphanumeric characters of
// the salted feature hash.
func (s *FeatureHash) Anonymize(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: token cannot be empty", ErrInvalidToken)
	}

	features := extractFeatures(token)
	identity := fmt.Sprintf("%s:%d", featureModelName, featureDimensions)
	hash := crypto.HashWithSalt(features.serialize(), identity)

	return crypto.FormatProxyToken(featureHashPrefix, hash, featureHashLen), nil
}

// BatchAnonymize anonymizes tokens in order.
func (s *FeatureHash) BatchAnonymize(ctx context.Context, tokens []string) ([]string, error) {
	return batchAnonymize(ctx, s, tokens)
}

// IsReversible always reports false: equal-feature tokens collide by design.
func (s *FeatureHash) IsReversible() bool { return false }

// Info returns strategy metadata.
func (s *FeatureHash) Info() Info {
	return Info{
		Name:       NameEmbeddings,
		Reversible: false,
		Details: map[string]string{
			"model":      featureModelName,
			"dimensions": fmt.Sprintf("%d", featureDimensions),
		},
	}
}

func extractFeatures(token string) tokenFeatures {
	features := tokenFeatures{
		length:  len(token),
		entropy: math.Round(shannonEntropy(token)*100) / 100,
		class:   classify(token),
	}
	if features.length > maxFeatureLength {
		features.length = maxFeatureLength
	}

	hasLetter := false
	allUpper := true
	allLower := true
	for _, r := range token {
		switch {
		case unicode.IsDigit(r):
			features.hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
			if unicode.IsUpper(r) {
				allLower = false
			}
			if unicode.IsLower(r) {
				allUpper = false
			}
		default:
			features.hasSpecial = true
		}
	}
	features.allUpper = hasLetter && allUpper
	features.allLower = hasLetter && allLower

	return features
}

// serialize renders the feature record in a fixed field order so the hash is
// stable across runs.
func (f tokenFeatures) serialize() string {
	return fmt.Sprintf("len=%d|digit=%t|special=%t|upper=%t|lower=%t|entropy=%.2f|class=%s",
		f.length, f.hasDigit, f.hasSpecial, f.allUpper, f.allLower, f.entropy, f.class)
}

// classify assigns a coarse token class via fixed-order pattern checks.
func classify(token string) string {
	switch {
	case classUUID.MatchString(token):
		return "uuid"
	case classBase64.MatchString(token) && len(token)%4 == 0 && len(token) >= 16 && !classHex.MatchString(token):
		return "base64"
	case classHex.MatchString(token) && len(token) >= 16:
		return "hex"
	case classEmail.MatchString(token):
		return "email"
	case classPhone.MatchString(token):
		return "phone"
	case classAPIKey.MatchString(token):
		return "apikey"
	default:
		return "generic"
	}
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[byte]int)
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
