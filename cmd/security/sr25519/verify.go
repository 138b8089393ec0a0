package sr25519

import (
	"encoding/hex"
	"fmt"
	"strings"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"

	"deeplink/cmd/identity"
)

const (
	// SignatureLen is the encoded signature size in bytes.
	SignatureLen = 64

	// DefaultContext is the signing context used by Substrate tooling.
	DefaultContext = "substrate"
)

// Verifier checks signatures against the public key embedded in an SS58 address.
// It is stateless and safe for concurrent use.
type Verifier struct {
	context []byte
}

// NewVerifier returns a Verifier bound to a signing context.
// An empty context selects DefaultContext.
func NewVerifier(signingContext string) *Verifier {
	if strings.TrimSpace(signingContext) == "" {
		signingContext = DefaultContext
	}
	return &Verifier{context: []byte(signingContext)}
}

// Verify reports whether sig is a valid signature of msg by the owner of address.
//
// Malformed inputs return (false, err) wrapping ErrMalformedKey or
// ErrMalformedSignature. A well-formed signature that does not match returns (false, nil).
func (v *Verifier) Verify(address string, msg, sig []byte) (bool, error) {
	addr, err := identity.ParseAddress(address)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}

	pub, err := schnorrkel.NewPublicKey(addr.PublicKey)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}

	if len(sig) != SignatureLen {
		return false, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	var raw [SignatureLen]byte
	copy(raw[:], sig)

	s := new(schnorrkel.Signature)
	if err := s.Decode(raw); err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}

	ok, err := pub.Verify(s, schnorrkel.NewSigningContext(v.context, msg))
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// DecodeSignatureHex decodes a hex signature, accepting an optional 0x prefix.
func DecodeSignatureHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != SignatureLen*2 {
		return nil, fmt.Errorf("%w: hex length %d", ErrMalformedSignature, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return b, nil
}
