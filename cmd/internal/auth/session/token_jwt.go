package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"deeplink/cmd/security/token"
)

// jwtClaims keeps the wire claim names clients already parse: user_id, device_id, exp.
type jwtClaims struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

type jwtManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	secret    []byte
}

// NewJWTManager builds an HS256 TokenManager.
func NewJWTManager(cfg Config) (TokenManager, error) {
	secret, err := token.SigningKey(cfg.JWTSecret, token.MinSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: jwt secret: %w", ErrConfig, err)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("%w: token ttl must be > 0", ErrConfig)
	}
	return &jwtManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
	}, nil
}

func (m *jwtManager) Issue(userID, deviceID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)

	claims := jwtClaims{
		UserID:   userID,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt sign: %w", err)
	}
	// NumericDate has second precision; report what the token actually says.
	return signed, claims.ExpiresAt.Time, nil
}

func (m *jwtManager) Verify(tokenStr string, now time.Time) (Claims, error) {
	var claims jwtClaims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.DeviceID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID:   claims.UserID,
		DeviceID: claims.DeviceID,
		Issuer:   claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
