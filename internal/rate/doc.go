// Package rate provides the Redis-backed fixed-window counters behind the
// engine's per-subject, per-path rate limiting.
//
// # Window semantics
//
// One counter per (subject, normalized path): atomic INCR, with the window
// TTL attached on the first hit. Post-increment count above the limit means
// the call is limited. Key prefix: rl:.
//
// # What this package must NOT do
//
//   - Resolve tiers or rules (that policy lives in the engine).
//   - Be imported outside the authcore module.
package rate
