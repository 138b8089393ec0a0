package identity

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// PublicKeyLen is the sr25519 public key size carried by an address.
	PublicKeyLen = 32

	// GenericPrefix is the network prefix used by generic Substrate addresses ("5...").
	GenericPrefix uint16 = 42

	checksumLen = 2
	maxPrefix   = 16383
)

var ss58Salt = []byte("SS58PRE")

// Address is a decoded SS58 address.
type Address struct {
	Prefix    uint16
	PublicKey [PublicKeyLen]byte
}

// String re-encodes the address.
func (a Address) String() string {
	return EncodeAddress(a.Prefix, a.PublicKey)
}

// ParseAddress decodes an SS58 address carrying a 32-byte public key.
// One-byte (0..63) and two-byte (64..16383) network prefixes are accepted.
func ParseAddress(s string) (Address, error) {
	const op = "identity.ParseAddress"

	s = NormalizeUserID(s)
	if s == "" || len(s) > MaxUserIDLen {
		return Address{}, AddressError{Op: op, Kind: ErrInvalidInput, Msg: "length"}
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, AddressError{Op: op, Kind: ErrInvalidAddress, Msg: "base58"}
	}
	if len(raw) == 0 {
		return Address{}, AddressError{Op: op, Kind: ErrInvalidAddress, Msg: "empty"}
	}

	prefix, prefixLen, err := decodePrefix(raw)
	if err != nil {
		return Address{}, AddressError{Op: op, Kind: ErrInvalidAddress, Msg: err.Error()}
	}

	if len(raw) != prefixLen+PublicKeyLen+checksumLen {
		return Address{}, AddressError{Op: op, Kind: ErrInvalidAddress, Msg: fmt.Sprintf("unexpected length %d", len(raw))}
	}

	body := raw[:len(raw)-checksumLen]
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumLen], raw[len(raw)-checksumLen:]) {
		return Address{}, AddressError{Op: op, Kind: ErrChecksum}
	}

	var a Address
	a.Prefix = prefix
	copy(a.PublicKey[:], body[prefixLen:])
	return a, nil
}

// EncodeAddress renders a public key as an SS58 address for the given prefix.
// Prefixes above 16383 are clamped to the generic prefix.
func EncodeAddress(prefix uint16, pub [PublicKeyLen]byte) string {
	if prefix > maxPrefix {
		prefix = GenericPrefix
	}

	var body []byte
	if prefix < 64 {
		body = append(body, byte(prefix))
	} else {
		first := byte((prefix&0x00fc)>>2) | 0x40
		second := byte(prefix>>8) | byte((prefix&0x0003)<<6)
		body = append(body, first, second)
	}
	body = append(body, pub[:]...)

	sum := checksum(body)
	body = append(body, sum[:checksumLen]...)
	return base58.Encode(body)
}

func decodePrefix(raw []byte) (uint16, int, error) {
	b0 := raw[0]
	switch {
	case b0 < 64:
		return uint16(b0), 1, nil
	case b0 < 128:
		if len(raw) < 2 {
			return 0, 0, fmt.Errorf("truncated prefix")
		}
		b1 := raw[1]
		lower := uint16(b0&0x3f)<<2 | uint16(b1>>6)
		upper := uint16(b1 & 0x3f)
		return lower | upper<<8, 2, nil
	default:
		return 0, 0, fmt.Errorf("reserved prefix byte %d", b0)
	}
}

func checksum(body []byte) [blake2b.Size]byte {
	buf := make([]byte, 0, len(ss58Salt)+len(body))
	buf = append(buf, ss58Salt...)
	buf = append(buf, body...)
	return blake2b.Sum512(buf)
}
