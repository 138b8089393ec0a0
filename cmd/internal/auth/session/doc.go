// Package session implements deeplink's login handshake.
//
// A user id is an SS58 address, so the public key needed to check a login
// travels with the request. Each user has a stored nonce; a login must present
// a strictly greater nonce together with an sr25519 signature over its decimal
// form. The new nonce is persisted with an atomic set-if-greater before any
// token is issued, so a replayed or raced request can never mint a second token.
//
// Access tokens are HS256 JWTs by default (claims user_id, device_id, exp) or
// PASETO v4.public when configured. Nonce backends: in-memory, PostgreSQL,
// MongoDB and Redis.
package session
