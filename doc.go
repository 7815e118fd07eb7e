// Package authcore is an embeddable authentication and access-control
// core: signed access/refresh token lifecycle with revocation, argon2id
// password hashing, one-time verification and password-reset codes,
// tier-aware fixed-window rate limiting, and asynchronous email
// notification dispatch.
//
// The package is transport-agnostic. It owns no HTTP routes and no
// schema; callers inject a Redis client plus implementations of
// [CredentialStore], [TierStore], and [Notifier], then drive the flows
// through [Engine]:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(client).
//		WithCredentialStore(users).
//		Build()
//
// Reference implementations of the consumed interfaces live in
// adapters/sqlitestore (storage) and notify (queue). Thin HTTP glue for
// bearer extraction and rate limiting lives in middleware.
package authcore
