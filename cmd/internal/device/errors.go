package device

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for missing or oversized device fields.
	ErrInvalidInput = errors.New("invalid device input")

	// ErrDeviceExists is returned by Registry.Insert when the id is already taken.
	ErrDeviceExists = errors.New("device id already exists")

	// ErrDeviceNotFound is returned by Registry.Get for unknown ids.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrAllocationExhausted is returned when every attempt drew a taken id.
	ErrAllocationExhausted = errors.New("device id allocation exhausted")

	// ErrStore marks failures of the backing registry (transient; retry later).
	ErrStore = errors.New("device store failure")

	// ErrMissingIndex is returned by MongoRegistry.CheckIndexes when the
	// unique device_id index is absent.
	ErrMissingIndex = errors.New("missing unique index")
)

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
