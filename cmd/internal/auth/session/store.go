package session

//go:generate mockgen -source=store.go -destination=../../mocks/session_nonce_store.go -package=mocks

import "context"

// NonceStore persists the last accepted login nonce per user.
//
// SetIfGreater must be atomic: it writes nonce only when it is strictly greater
// than the stored value (absent counts as 0) and reports whether it wrote.
// Of two concurrent calls with the same nonce at most one returns true.
type NonceStore interface {
	// Get returns the stored nonce, or 0 when the user has none.
	Get(ctx context.Context, userID string) (uint64, error)

	// SetIfGreater advances the stored nonce to nonce if nonce > stored.
	SetIfGreater(ctx context.Context, userID string, nonce uint64) (bool, error)
}
