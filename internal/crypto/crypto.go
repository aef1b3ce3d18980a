package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ErrRandom indicates the platform random source failed.
var ErrRandom = errors.New("random generation failed")

const saltBytes = 16

var proxyTokenPattern = regexp.MustCompile(`^(anon|sem)_[A-Za-z0-9]+$`)

// GenerateSalt returns a hex-encoded random salt.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandom, err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateMapID returns a fresh opaque mapping identifier. The id is random
// and independent of the anonymized content.
func GenerateMapID() string {
	return uuid.NewString()
}

// HashWithSalt computes the base64-encoded SHA-256 digest of value||salt.
func HashWithSalt(value, salt string) string {
	sum := sha256.Sum256([]byte(value + salt))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Sign computes the hex-encoded HMAC-SHA256 of payload under secret.
func Sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the HMAC of payload and compares it against signature
// in constant time.
func Verify(payload, secret, signature string) bool {
	return ConstantTimeCompare(Sign(payload, secret), signature)
}

// ConstantTimeCompare reports whether a and b are equal without
// short-circuiting on the first differing byte. Unequal lengths compare
// false, but the full length of a is still scanned so the comparison cost
// does not reveal where the inputs diverge.
func ConstantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		subtle.ConstantTimeCompare([]byte(a), []byte(a))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FormatProxyToken builds a proxy token from a prefix and a hash slice,
// stripping any character that is not alphanumeric so the result is a plain
// substring safe to embed in arbitrary text.
func FormatProxyToken(prefix, hash string, length int) string {
	filtered := make([]byte, 0, length)
	for i := 0; i < len(hash) && len(filtered) < length; i++ {
		c := hash[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			filtered = append(filtered, c)
		}
	}
	return prefix + string(filtered)
}

// IsProxyToken reports whether s has the textual shape of a proxy token
// produced by one of the anonymization strategies.
func IsProxyToken(s string) bool {
	return proxyTokenPattern.MatchString(s)
}
