package sr25519

import (
	"encoding/hex"
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"

	"deeplink/cmd/identity"
)

// Keypair is a client-side signing key. The server never holds one; it exists
// for the smoke client and tests.
type Keypair struct {
	secret  *schnorrkel.SecretKey
	public  *schnorrkel.PublicKey
	context []byte
}

// GenerateKeypair creates a fresh random keypair bound to a signing context.
func GenerateKeypair(signingContext string) (*Keypair, error) {
	sk, pk, err := schnorrkel.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("sr25519 generate: %w", err)
	}
	if signingContext == "" {
		signingContext = DefaultContext
	}
	return &Keypair{secret: sk, public: pk, context: []byte(signingContext)}, nil
}

// Address returns the SS58 address for the public key under the given network prefix.
func (k *Keypair) Address(prefix uint16) string {
	return identity.EncodeAddress(prefix, k.public.Encode())
}

// Sign signs msg and returns the 64-byte encoded signature.
func (k *Keypair) Sign(msg []byte) ([]byte, error) {
	sig, err := k.secret.Sign(schnorrkel.NewSigningContext(k.context, msg))
	if err != nil {
		return nil, fmt.Errorf("sr25519 sign: %w", err)
	}
	enc := sig.Encode()
	return enc[:], nil
}

// SignHex signs msg and returns the signature as 0x-prefixed hex.
func (k *Keypair) SignHex(msg []byte) (string, error) {
	sig, err := k.Sign(msg)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}
