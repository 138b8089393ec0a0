package session

//go:generate mockgen -source=service.go -destination=../../mocks/session_service.go -package=mocks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deeplink/cmd/identity"
	"deeplink/cmd/security/sr25519"
)

const maxDeviceIDLen = 64

// SignatureVerifier checks a signature over msg against the key in address.
type SignatureVerifier interface {
	Verify(address string, msg, sig []byte) (bool, error)
}

// DeviceLookup is the read side of the device registry used in strict mode.
type DeviceLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service implements the login handshake and nonce queries.
//
// It holds no per-user state: every check reads the NonceStore, and the nonce
// advance is delegated to NonceStore.SetIfGreater.
type Service struct {
	cfg      Config
	nonces   NonceStore
	verifier SignatureVerifier
	devices  DeviceLookup
	tokens   TokenManager
	now      func() time.Time
}

// LoginInput is a decoded login request.
type LoginInput struct {
	UserID    string
	DeviceID  string
	Nonce     uint64
	Signature string
	Now       time.Time
}

// Issued is the result of a successful login.
type Issued struct {
	UserID    string
	DeviceID  string
	Nonce     uint64
	Token     string
	ExpiresAt time.Time
}

// NewService wires the handshake. devices may be nil unless
// cfg.RequireRegisteredDevice is set.
func NewService(cfg Config, nonces NonceStore, verifier SignatureVerifier, devices DeviceLookup, tokens TokenManager) *Service {
	return &Service{
		cfg:      cfg,
		nonces:   nonces,
		verifier: verifier,
		devices:  devices,
		tokens:   tokens,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CurrentNonce returns the last accepted nonce for userID (0 if none).
func (s *Service) CurrentNonce(ctx context.Context, userID string) (uint64, error) {
	const op = "session.CurrentNonce"

	userID = identity.NormalizeUserID(userID)
	if userID == "" || len(userID) > identity.MaxUserIDLen {
		return 0, fmt.Errorf("%s: %w: user_id", op, ErrInvalidInput)
	}

	n, err := s.nonces.Get(ctx, userID)
	if err != nil {
		return 0, StoreError{Op: op, Err: err}
	}
	return n, nil
}

// Login verifies a signed nonce and issues an access token.
//
// Steps: read stored nonce; reject nonce <= stored; verify the signature over
// the decimal nonce; optionally require a registered device; advance the
// stored nonce atomically; only then issue the token. A failed step leaves the
// stored nonce unchanged.
func (s *Service) Login(ctx context.Context, in LoginInput) (Issued, error) {
	const op = "session.Login"

	userID := identity.NormalizeUserID(in.UserID)
	deviceID := strings.TrimSpace(in.DeviceID)
	if userID == "" || len(userID) > identity.MaxUserIDLen {
		return Issued{}, fmt.Errorf("%s: %w: user_id", op, ErrInvalidInput)
	}
	if deviceID == "" || len(deviceID) > maxDeviceIDLen {
		return Issued{}, fmt.Errorf("%s: %w: device_id", op, ErrInvalidInput)
	}

	now := in.Now
	if now.IsZero() {
		now = s.now()
	}

	stored, err := s.nonces.Get(ctx, userID)
	if err != nil {
		return Issued{}, StoreError{Op: op, Err: err}
	}
	if in.Nonce <= stored {
		return Issued{}, NonceReplayError{UserID: userID, Presented: in.Nonce, Stored: stored}
	}

	sig, err := sr25519.DecodeSignatureHex(in.Signature)
	if err != nil {
		return Issued{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}
	msg := []byte(strconv.FormatUint(in.Nonce, 10))
	ok, err := s.verifier.Verify(userID, msg, sig)
	if err != nil {
		return Issued{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}
	if !ok {
		return Issued{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	if s.cfg.RequireRegisteredDevice {
		if err := s.requireDevice(ctx, op, deviceID); err != nil {
			return Issued{}, err
		}
	}

	written, err := s.nonces.SetIfGreater(ctx, userID, in.Nonce)
	if err != nil {
		return Issued{}, StoreError{Op: op, Err: err}
	}
	if !written {
		return Issued{}, NonceReplayError{UserID: userID, Presented: in.Nonce, Stored: stored, Raced: true}
	}

	tok, exp, err := s.tokens.Issue(userID, deviceID, now)
	if err != nil {
		return Issued{}, fmt.Errorf("%s: issue token: %w", op, err)
	}

	return Issued{
		UserID:    userID,
		DeviceID:  deviceID,
		Nonce:     in.Nonce,
		Token:     tok,
		ExpiresAt: exp,
	}, nil
}

// ValidateToken verifies an access token. In strict mode the device it names
// must still be registered.
func (s *Service) ValidateToken(ctx context.Context, token string, now time.Time) (Claims, error) {
	const op = "session.ValidateToken"

	token = strings.TrimSpace(token)
	if token == "" || len(token) > 4096 {
		return Claims{}, ErrInvalidToken
	}

	claims, err := s.tokens.Verify(token, now)
	if err != nil {
		return Claims{}, err
	}

	if s.cfg.RequireRegisteredDevice {
		if err := s.requireDevice(ctx, op, claims.DeviceID); err != nil {
			return Claims{}, err
		}
	}
	return claims, nil
}

func (s *Service) requireDevice(ctx context.Context, op, deviceID string) error {
	if s.devices == nil {
		return fmt.Errorf("%s: %w: no device registry configured", op, ErrDeviceNotRegistered)
	}
	exists, err := s.devices.Exists(ctx, deviceID)
	if err != nil {
		return StoreError{Op: op, Err: err}
	}
	if !exists {
		return fmt.Errorf("%s: %w: %s", op, ErrDeviceNotRegistered, deviceID)
	}
	return nil
}
