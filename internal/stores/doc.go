// Package stores provides the Redis-backed ephemeral state of the recovery
// protocol: challenge records, per-origin cooldowns, and reset-token replay
// markers.
//
// # Design
//
// Every entry is written with a TTL and additionally carries an absolute
// expiry instant where record semantics need one; reads after expiry behave
// as absence. The challenge consume path is a single Lua script, so the
// whole lookup/obsolescence/lockout/compare/increment sequence executes atomically
// per key — concurrent submissions for the same email serialize inside
// Redis. Replay marking is a bare SET NX: exactly one consumer wins.
//
// # Architecture boundaries
//
// This package owns persistence, record encoding, and per-key atomicity.
// It does not generate codes, sign tokens, or decide protocol outcomes —
// the engine flows do, from the typed errors returned here.
//
// # What this package must NOT do
//
//   - Import the recovery root package.
//   - Log or expose plaintext codes (only digests are stored).
//   - Use non-constant-time comparisons for secret matching in Go code.
package stores
