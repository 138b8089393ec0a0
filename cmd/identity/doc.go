// Package identity implements deeplink's user identity primitives.
//
// A user id is an SS58 address: a base58 string that embeds an sr25519 public
// key, a network prefix and a blake2b checksum. Identities are self-certifying,
// so the server never stores a key registry.
package identity
