package strategy

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	logger := zap.NewNop()

	t.Run("HashSalt", func(t *testing.T) {
		s, err := New(NameHashSalt, "", logger)
		if err != nil {
			t.Fatalf("Failed to create strategy: %v", err)
		}
		if !s.IsReversible() {
			t.Error("Hash-salt strategy should be reversible")
		}
	})

	t.Run("Embeddings", func(t *testing.T) {
		s, err := New(NameEmbeddings, "", logger)
		if err != nil {
			t.Fatalf("Failed to create strategy: %v", err)
		}
		if s.IsReversible() {
			t.Error("Embeddings strategy should not be reversible")
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := New("nope", "", logger); err == nil {
			t.Error("Expected error for unknown strategy name")
		}
	})
}

func TestHashSalt(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("TokenShape", func(t *testing.T) {
		s, _ := NewHashSalt("fixed-salt", logger)
		proxy, err := s.Anonymize(ctx, "sk-1234567890abcdef")
		if err != nil {
			t.Fatalf("Anonymize failed: %v", err)
		}
		if !strings.HasPrefix(proxy, "anon_") {
			t.Errorf("Expected anon_ prefix, got %s", proxy)
		}
		for _, c := range proxy[len("anon_"):] {
			if !(('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')) {
				t.Errorf("Token body contains non-alphanumeric %q in %s", c, proxy)
			}
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		s, _ := NewHashSalt("fixed-salt", logger)
		a, _ := s.Anonymize(ctx, "secret-value")
		b, _ := s.Anonymize(ctx, "secret-value")
		if a != b {
			t.Error("Same token should map to same proxy within an instance")
		}
	})

	t.Run("DistinctTokensDistinctProxies", func(t *testing.T) {
		s, _ := NewHashSalt("fixed-salt", logger)
		a, _ := s.Anonymize(ctx, "value-one")
		b, _ := s.Anonymize(ctx, "value-two")
		if a == b {
			t.Error("Different tokens should map to different proxies")
		}
	})

	t.Run("SaltChangesProxy", func(t *testing.T) {
		s1, _ := NewHashSalt("salt-one", logger)
		s2, _ := NewHashSalt("salt-two", logger)
		a, _ := s1.Anonymize(ctx, "secret-value")
		b, _ := s2.Anonymize(ctx, "secret-value")
		if a == b {
			t.Error("Different salts should produce different proxies")
		}
	})

	t.Run("GeneratedSaltsDiffer", func(t *testing.T) {
		s1, _ := NewHashSalt("", logger)
		s2, _ := NewHashSalt("", logger)
		a, _ := s1.Anonymize(ctx, "secret-value")
		b, _ := s2.Anonymize(ctx, "secret-value")
		if a == b {
			t.Error("Instances with generated salts should not collide")
		}
	})

	t.Run("EmptyToken", func(t *testing.T) {
		s, _ := NewHashSalt("fixed-salt", logger)
		if _, err := s.Anonymize(ctx, ""); err == nil {
			t.Error("Expected error for empty token")
		}
	})

	t.Run("Batch", func(t *testing.T) {
		s, _ := NewHashSalt("fixed-salt", logger)
		proxies, err := s.BatchAnonymize(ctx, []string{"one-value", "two-value"})
		if err != nil {
			t.Fatalf("BatchAnonymize failed: %v", err)
		}
		if len(proxies) != 2 {
			t.Fatalf("Expected 2 proxies, got %d", len(proxies))
		}
		single, _ := s.Anonymize(ctx, "one-value")
		if proxies[0] != single {
			t.Error("Batch result should match single anonymization")
		}
	})
}

func TestFeatureHash(t *testing.T) {
	ctx := context.Background()
	s := NewFeatureHash(zap.NewNop())

	t.Run("TokenShape", func(t *testing.T) {
		proxy, err := s.Anonymize(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("Anonymize failed: %v", err)
		}
		if !strings.HasPrefix(proxy, "sem_") {
			t.Errorf("Expected sem_ prefix, got %s", proxy)
		}
		if len(proxy) != len("sem_")+12 {
			t.Errorf("Expected 12-char body, got %s", proxy)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, _ := s.Anonymize(ctx, "user@example.com")
		b, _ := s.Anonymize(ctx, "user@example.com")
		if a != b {
			t.Error("Same token should map to same proxy")
		}
	})

	t.Run("EqualFeaturesCollide", func(t *testing.T) {
		// Same length, same character classes, same entropy profile.
		a, _ := s.Anonymize(ctx, "abcd")
		b, _ := s.Anonymize(ctx, "dcba")
		if a != b {
			t.Error("Tokens with identical features should share a proxy")
		}
	})

	t.Run("DifferentFeaturesDiffer", func(t *testing.T) {
		a, _ := s.Anonymize(ctx, "user@example.com")
		b, _ := s.Anonymize(ctx, "short")
		if a == b {
			t.Error("Tokens with different features should get different proxies")
		}
	})

	t.Run("EmptyToken", func(t *testing.T) {
		if _, err := s.Anonymize(ctx, ""); err == nil {
			t.Error("Expected error for empty token")
		}
	})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		token string
		want  string
	}{
		{"550e8400-e29b-41d4-a716-446655440000", "uuid"},
		{"deadbeefdeadbeef", "hex"},
		{"user@example.com", "email"},
		{"+1-555-123-4567", "phone"},
		{"sk_live_abc123XYZ789", "apikey"},
		{"hello world", "generic"},
	}

	for _, tc := range cases {
		if got := classify(tc.token); got != tc.want {
			t.Errorf("classify(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}
