package session

import (
	"fmt"
	"strings"
	"time"

	"deeplink/cmd/security/sr25519"
	"deeplink/cmd/security/token"
)

// Token formats understood by NewTokenManager.
const (
	TokenFormatJWT    = "jwt"
	TokenFormatPaseto = "paseto"
)

// Config defines runtime configuration for the login handshake and token issuance.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration

	// ClockSkew is the tolerance applied when verifying tokens.
	ClockSkew time.Duration

	// TokenFormat selects the token encoding: "jwt" or "paseto".
	TokenFormat string

	// JWTSecret is the HMAC-SHA256 key for JWT tokens (>= 32 bytes).
	JWTSecret string

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key for PASETO v4.public tokens.
	PasetoV4SecretKeyHex string

	// SigningContext is the sr25519 signing context clients sign under.
	SigningContext string

	// RequireRegisteredDevice makes login reject device ids absent from the registry.
	RequireRegisteredDevice bool
}

// DefaultConfig returns defaults matching deployed clients: 14-day JWTs and
// the "substrate" signing context. Secrets are left empty.
func DefaultConfig() Config {
	return Config{
		Issuer:         "deeplink",
		TokenTTL:       14 * 24 * time.Hour,
		ClockSkew:      30 * time.Second,
		TokenFormat:    TokenFormatJWT,
		SigningContext: sr25519.DefaultContext,
	}
}

// Validate checks the configuration. Errors wrap ErrConfig.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: issuer is required", ErrConfig)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be > 0", ErrConfig)
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("%w: clock skew must be >= 0", ErrConfig)
	}

	switch c.TokenFormat {
	case TokenFormatJWT:
		if _, err := token.SigningKey(c.JWTSecret, token.MinSecretBytes); err != nil {
			return fmt.Errorf("%w: jwt secret: %w", ErrConfig, err)
		}
	case TokenFormatPaseto:
		if strings.TrimSpace(c.PasetoV4SecretKeyHex) == "" {
			return fmt.Errorf("%w: paseto secret key is required", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown token format %q", ErrConfig, c.TokenFormat)
	}
	return nil
}
