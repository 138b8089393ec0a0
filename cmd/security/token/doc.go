// Package token provides signing-key policy and log-safe token fingerprints.
//
// Access tokens are bearer credentials: they are never written to logs.
// Fingerprint gives operators a stable short handle to correlate an issued
// token with later reports without storing the token itself.
//
// Environment:
// - DEEPLINK_JWT_SECRET: HMAC secret for JWT access tokens (>= 32 bytes).
package token
