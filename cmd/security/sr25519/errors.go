package sr25519

import "errors"

var (
	// ErrMalformedSignature is returned when a signature is not 64 bytes of valid hex or encoding.
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrMalformedKey is returned when the address does not carry a usable public key.
	ErrMalformedKey = errors.New("malformed public key")
)
