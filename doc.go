// Package recovery implements the password-recovery protocol used by the
// Velorent rental backend: a three-stage flow (challenge request, code
// verification, reset finalization) backed by Redis for all cross-request
// state and designed to resist brute-forcing and user enumeration.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The protocol itself is stateless per request; every piece
// of cross-request state (challenges, cooldowns, replay markers) lives in
// Redis with a TTL.
//
// # Architecture boundaries
//
// recovery is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([AccountDirectory], [CredentialStore],
// [Notifier]), sentinel errors, and wire codes. Persistence, record encoding,
// and atomic consume logic live under internal/ and are never exported.
//
// Account lookup, credential persistence, and code delivery are deliberately
// external: the engine decides whether and with what payload to call them,
// never how they are implemented.
//
// # What this package must NOT do
//
//   - Expose Redis clients, record encodings, or challenge codes in its
//     public API or audit events.
//   - Reveal through any observable output whether an email address has a
//     matching account.
//   - Hold state between requests outside the Redis stores.
package recovery
