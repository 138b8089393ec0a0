package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for missing or oversized login fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNonceReplay is returned when the presented nonce is not greater than the stored one.
	ErrNonceReplay = errors.New("nonce replay")

	// ErrInvalidSignature is returned when the signature is malformed or does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrDeviceNotRegistered is returned in strict mode for unknown device ids.
	ErrDeviceNotRegistered = errors.New("device not registered")

	// ErrInvalidToken is returned when an access token fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrStore marks failures of the nonce store or device lookup (transient; retry later).
	ErrStore = errors.New("session store failure")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrMissingIndex is returned by MongoNonceStore.CheckIndexes when the
	// unique user_id index is absent.
	ErrMissingIndex = errors.New("missing unique index")
)

// NonceReplayError carries the values that caused a replay rejection.
// Raced is set when the nonce was fresh on read but a concurrent login
// advanced the store first; Stored is then the value seen before the race.
type NonceReplayError struct {
	UserID    string
	Presented uint64
	Stored    uint64
	Raced     bool
}

func (e NonceReplayError) Error() string {
	if e.Raced {
		return fmt.Sprintf("%s: presented=%d lost concurrent update", ErrNonceReplay.Error(), e.Presented)
	}
	return fmt.Sprintf("%s: presented=%d stored=%d", ErrNonceReplay.Error(), e.Presented, e.Stored)
}

func (e NonceReplayError) Unwrap() error { return ErrNonceReplay }

// StoreError wraps a backend failure with the operation that observed it.
// errors.Is(err, ErrStore) holds for every StoreError.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStore, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

func (e StoreError) Is(target error) bool { return target == ErrStore }
