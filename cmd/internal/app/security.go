package app

import (
	"errors"
	"fmt"

	"deeplink/cmd/internal/auth/session"
	"deeplink/cmd/security/token"
)

// ValidateSecurityConfig enforces the token signing policy at startup.
// A missing or short signing secret is fatal; there is no unsigned fallback.
func ValidateSecurityConfig(cfg *Config) error {
	scfg := cfg.Session()

	if scfg.TokenFormat == session.TokenFormatJWT {
		if _, err := token.SigningKey(scfg.JWTSecret, token.MinSecretBytes); err != nil {
			switch {
			case errors.Is(err, token.ErrSigningKeyMissing):
				return fmt.Errorf("security policy: auth.token_format=jwt but %s is missing", token.SecretEnvKey)
			case errors.Is(err, token.ErrSigningKeyTooShort):
				return fmt.Errorf("security policy: %s is too short (min %d bytes)", token.SecretEnvKey, token.MinSecretBytes)
			default:
				return err
			}
		}
	}

	if err := scfg.Validate(); err != nil {
		return fmt.Errorf("security policy: %w", err)
	}
	return nil
}
