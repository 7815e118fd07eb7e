// Package token signs and verifies the compact credentials issued by the
// authentication engine.
//
// Access and refresh tokens are HS256-signed JWTs carrying the subject, the
// token type, and the expiry. Reset and verification codes are deliberately
// NOT signed structures: they are random opaque identifiers whose meaning
// lives only in the ephemeral store, so this package only generates them.
//
// # Uniform failure
//
// Verify collapses every failure mode (bad signature, expired, wrong type,
// malformed input) into ErrInvalid. Callers must never be able to tell why a
// token was rejected.
package token
