// Package middleware exposes HTTP adapters for the authcore engine:
// bearer-token authentication guards and a tier-aware rate-limit gate.
//
// # Guards
//
//   - [Guard] reads the Authorization header, resolves the principal
//     through Engine.CurrentUser, and injects it into the request
//     context.
//   - [RequireSuperuser] additionally rejects non-superusers.
//   - [RateLimit] charges one window hit per request, keyed by the
//     authenticated principal or the client IP.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. It does not
// parse tokens, touch Redis, or make authorization decisions itself; all
// of that is delegated to the engine.
package middleware
