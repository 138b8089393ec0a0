package device

import (
	"context"
	"sync"
)

// InMemoryRegistry is a dev-only Registry used when no database is configured.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	devices map[string]Record
}

// NewInMemoryRegistry constructs an empty in-memory Registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{devices: make(map[string]Record)}
}

// Exists reports whether id is registered.
func (r *InMemoryRegistry) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	_, ok := r.devices[id]
	r.mu.RUnlock()
	return ok, nil
}

// Insert stores rec unless its id is taken.
func (r *InMemoryRegistry) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[rec.DeviceID]; ok {
		return ErrDeviceExists
	}
	r.devices[rec.DeviceID] = rec
	return nil
}

// Get returns the record for id.
func (r *InMemoryRegistry) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	rec, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		return Record{}, ErrDeviceNotFound
	}
	return rec, nil
}

// Len returns the number of registered devices.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
