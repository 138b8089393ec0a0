package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func validJWTConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = testJWTSecret
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.TokenTTL != 14*24*time.Hour {
		t.Fatalf("TokenTTL=%v want 14 days", cfg.TokenTTL)
	}
	if cfg.TokenFormat != TokenFormatJWT {
		t.Fatalf("TokenFormat=%q want jwt", cfg.TokenFormat)
	}
	if cfg.SigningContext != "substrate" {
		t.Fatalf("SigningContext=%q want substrate", cfg.SigningContext)
	}
	if cfg.RequireRegisteredDevice {
		t.Fatalf("strict device check must default to off")
	}
	// No secret by default.
	if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("Validate without secret: err=%v want ErrConfig", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid jwt", mutate: func(*Config) {}, ok: true},
		{name: "empty issuer", mutate: func(c *Config) { c.Issuer = "  " }},
		{name: "zero ttl", mutate: func(c *Config) { c.TokenTTL = 0 }},
		{name: "negative skew", mutate: func(c *Config) { c.ClockSkew = -time.Second }},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }},
		{name: "unknown format", mutate: func(c *Config) { c.TokenFormat = "macaroon" }},
		{name: "paseto without key", mutate: func(c *Config) { c.TokenFormat = TokenFormatPaseto }},
		{
			name: "paseto with key",
			mutate: func(c *Config) {
				c.TokenFormat = TokenFormatPaseto
				c.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
			},
			ok: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validJWTConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrConfig) {
				t.Fatalf("err=%v want ErrConfig", err)
			}
		})
	}
}

func TestNewTokenManager_SelectsFormat(t *testing.T) {
	t.Parallel()

	jwtMgr, err := NewTokenManager(validJWTConfig())
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}
	if _, ok := jwtMgr.(*jwtManager); !ok {
		t.Fatalf("jwt format built %T", jwtMgr)
	}

	cfg := validJWTConfig()
	cfg.TokenFormat = TokenFormatPaseto
	cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	pasetoMgr, err := NewTokenManager(cfg)
	if err != nil {
		t.Fatalf("paseto: %v", err)
	}
	if _, ok := pasetoMgr.(*pasetoV4PublicManager); !ok {
		t.Fatalf("paseto format built %T", pasetoMgr)
	}

	cfg.TokenFormat = "unknown"
	if _, err := NewTokenManager(cfg); err == nil || !strings.Contains(err.Error(), "unknown token format") {
		t.Fatalf("unknown format: err=%v", err)
	}
}
