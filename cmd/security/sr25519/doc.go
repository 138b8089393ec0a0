// Package sr25519 verifies Schnorr signatures over Ristretto25519 produced by
// Substrate-compatible wallets.
//
// Public keys come from SS58 user ids (see cmd/identity). Signatures are
// 64 bytes, transported as hex with an optional 0x prefix.
package sr25519
