package token

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// SecretEnvKey is the env var name for the JWT HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "DEEPLINK_JWT_SECRET"

	// MinSecretBytes is the minimum HMAC-SHA256 secret size.
	MinSecretBytes = 32

	fingerprintHexLen = 12
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short, non-reversible handle for a token, safe to log.
// An empty token yields an empty fingerprint.
func Fingerprint(tok string) string {
	if tok == "" {
		return ""
	}
	return HashSHA256Hex(tok)[:fingerprintHexLen]
}

// SigningKey validates a raw secret (trimmed) against a minimum byte length.
// Blank -> ErrSigningKeyMissing. Too short -> ErrSigningKeyTooShort.
func SigningKey(raw string, minBytes int) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrSigningKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrSigningKeyTooShort
	}
	return b, nil
}
