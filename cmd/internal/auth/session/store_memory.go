package session

import (
	"context"
	"sync"
)

// InMemoryNonceStore is a dev-only NonceStore used when no database is configured.
type InMemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]uint64
}

// NewInMemoryNonceStore constructs an empty in-memory NonceStore.
func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{nonces: make(map[string]uint64)}
}

// Get returns the stored nonce or 0.
func (s *InMemoryNonceStore) Get(ctx context.Context, userID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[userID], nil
}

// SetIfGreater advances the nonce under the store lock.
func (s *InMemoryNonceStore) SetIfGreater(ctx context.Context, userID string, nonce uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if nonce <= s.nonces[userID] {
		return false, nil
	}
	s.nonces[userID] = nonce
	return true, nil
}
