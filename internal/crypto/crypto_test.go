package crypto

import (
	"strings"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	t.Run("Length", func(t *testing.T) {
		salt, err := GenerateSalt()
		if err != nil {
			t.Fatalf("Failed to generate salt: %v", err)
		}
		if len(salt) != 32 {
			t.Errorf("Expected 32 hex chars, got %d", len(salt))
		}
	})

	t.Run("Uniqueness", func(t *testing.T) {
		a, _ := GenerateSalt()
		b, _ := GenerateSalt()
		if a == b {
			t.Error("Two generated salts should not match")
		}
	})
}

func TestGenerateMapID(t *testing.T) {
	a := GenerateMapID()
	b := GenerateMapID()
	if a == "" || b == "" {
		t.Fatal("Map id should not be empty")
	}
	if a == b {
		t.Error("Two generated map ids should not match")
	}
}

func TestHashWithSalt(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		if HashWithSalt("value", "salt") != HashWithSalt("value", "salt") {
			t.Error("Same input should produce same hash")
		}
	})

	t.Run("SaltChangesHash", func(t *testing.T) {
		if HashWithSalt("value", "salt1") == HashWithSalt("value", "salt2") {
			t.Error("Different salts should produce different hashes")
		}
	})

	t.Run("ValueChangesHash", func(t *testing.T) {
		if HashWithSalt("value1", "salt") == HashWithSalt("value2", "salt") {
			t.Error("Different values should produce different hashes")
		}
	})
}

func TestSignVerify(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		sig := Sign("payload", "secret")
		if !Verify("payload", "secret", sig) {
			t.Error("Signature should verify against the payload it signed")
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		sig := Sign("payload", "secret")
		if Verify("payload", "other", sig) {
			t.Error("Signature should not verify under a different secret")
		}
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		sig := Sign("payload", "secret")
		if Verify("payload2", "secret", sig) {
			t.Error("Signature should not verify against a modified payload")
		}
	})

	t.Run("HexEncoded", func(t *testing.T) {
		sig := Sign("payload", "secret")
		if len(sig) != 64 {
			t.Errorf("Expected 64 hex chars for HMAC-SHA256, got %d", len(sig))
		}
	})
}

func TestConstantTimeCompare(t *testing.T) {
	t.Run("Equal", func(t *testing.T) {
		if !ConstantTimeCompare("abc123", "abc123") {
			t.Error("Equal strings should compare true")
		}
	})

	t.Run("Unequal", func(t *testing.T) {
		if ConstantTimeCompare("abc123", "abc124") {
			t.Error("Different strings should compare false")
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		if ConstantTimeCompare("abc", "abcd") {
			t.Error("Strings of different lengths should compare false")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if !ConstantTimeCompare("", "") {
			t.Error("Two empty strings should compare true")
		}
	})
}

func TestFormatProxyToken(t *testing.T) {
	t.Run("StripsNonAlnum", func(t *testing.T) {
		token := FormatProxyToken("anon_", "ab+/c=1", 16)
		if token != "anon_abc1" {
			t.Errorf("Expected anon_abc1, got %s", token)
		}
	})

	t.Run("TruncatesToLength", func(t *testing.T) {
		token := FormatProxyToken("sem_", "abcdefghijklmnop", 12)
		if token != "sem_abcdefghijkl" {
			t.Errorf("Expected 12 chars after prefix, got %s", token)
		}
	})

	t.Run("IsSubstringSafe", func(t *testing.T) {
		token := FormatProxyToken("anon_", "a+b/c=d1e2f3g4h5i6", 16)
		if strings.ContainsAny(token[5:], "+/=") {
			t.Errorf("Token body should be alphanumeric, got %s", token)
		}
	})
}

func TestIsProxyToken(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"anon_abc123", true},
		{"sem_XYZ789", true},
		{"anon_", false},
		{"other_abc", false},
		{"anon_abc-def", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsProxyToken(tc.input); got != tc.want {
			t.Errorf("IsProxyToken(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
