package session

//go:generate mockgen -source=token.go -destination=../../mocks/session_token.go -package=mocks

import (
	"fmt"
	"time"
)

// Claims is the identity envelope carried by an access token.
type Claims struct {
	UserID    string
	DeviceID  string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Issuer    string
}

// TokenManager issues and verifies access tokens binding (user_id, device_id).
type TokenManager interface {
	Issue(userID, deviceID string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Claims, error)
}

// NewTokenManager builds the TokenManager selected by cfg.TokenFormat.
func NewTokenManager(cfg Config) (TokenManager, error) {
	switch cfg.TokenFormat {
	case TokenFormatJWT, "":
		return NewJWTManager(cfg)
	case TokenFormatPaseto:
		return NewPasetoV4PublicManager(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown token format %q", ErrConfig, cfg.TokenFormat)
	}
}
