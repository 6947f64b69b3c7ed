// Package audit defines the audit event model and sinks for the recovery
// engine.
//
// # Design
//
// Events are plain values; sinks decide where they go. The Dispatcher
// decouples flow latency from sink latency with a buffered channel and an
// optional drop-if-full policy, counting dropped events instead of blocking
// the protocol.
//
// # Architecture boundaries
//
// This package owns the event model and delivery mechanics. It does not
// decide what gets audited — the engine flows do.
//
// # What this package must NOT do
//
//   - Import the recovery root package or any sibling internal package.
//   - Carry challenge codes, passwords, or token material in events.
package audit
