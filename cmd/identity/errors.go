package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for empty or oversized input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAddress is returned when a string is not a well-formed SS58 address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrChecksum is returned when the embedded checksum does not match.
	ErrChecksum = errors.New("address checksum mismatch")
)

// AddressError is a typed parse error with a stable Op + Kind contract.
// Kind is one of the sentinel errors above; Msg never contains secrets.
type AddressError struct {
	Op   string
	Kind error
	Msg  string
}

func (e AddressError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e AddressError) Unwrap() error { return e.Kind }

// IsInvalidAddress reports whether err was produced by a failed address parse.
func IsInvalidAddress(err error) bool {
	return errors.Is(err, ErrInvalidAddress) || errors.Is(err, ErrChecksum) || errors.Is(err, ErrInvalidInput)
}
