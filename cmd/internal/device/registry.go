package device

//go:generate mockgen -source=registry.go -destination=../mocks/device_registry.go -package=mocks

import "context"

// Registry persists device records keyed by device id.
//
// Insert must be atomic: of two concurrent Inserts with the same id exactly one
// succeeds and the other returns ErrDeviceExists.
type Registry interface {
	// Exists reports whether a record with id is present.
	Exists(ctx context.Context, id string) (bool, error)

	// Insert stores rec if its id is absent; otherwise returns ErrDeviceExists.
	Insert(ctx context.Context, rec Record) error

	// Get loads a record by id or returns ErrDeviceNotFound.
	Get(ctx context.Context, id string) (Record, error)
}
