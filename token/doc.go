// Package token issues and verifies the short-lived reset tokens that
// bridge challenge verification and the final password write.
//
// # Design
//
// Tokens are standard JWTs signed with HS256 or Ed25519, carrying a random
// uid claim that doubles as the single-use replay key. The scope claim is
// fixed to ScopePasswordReset; tokens minted by any other system, or for
// any other purpose, never verify here.
//
// # What this package must NOT do
//
//   - Track token usage. Replay detection lives next to the engine, backed
//     by the ephemeral store.
//   - Accept unscoped or differently scoped tokens, regardless of signature
//     validity.
package token
