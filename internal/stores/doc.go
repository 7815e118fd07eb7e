// Package stores holds the Redis-backed state the engine shares across
// request handlers: the ephemeral key-value store for one-time codes and
// job-status snapshots, and the token blacklist.
//
// # Atomicity
//
// Ephemeral.Consume is a single GETDEL round trip, so a one-time code read
// concurrently by two handlers yields exactly one value and one miss.
// Blacklist presence is authoritative: an entry that exists is revoked,
// whether or not the expiry reaper has run.
package stores
