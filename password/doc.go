// Package password hashes new credentials with argon2id and checks
// candidate passwords against the configured policy.
//
// Hashes are emitted in PHC string format, so the credential store can
// treat them as opaque values and any argon2id-aware verifier can check
// them later.
//
// # What this package must NOT do
//
//   - Store or look up credentials. It only computes hash strings.
//   - Apply Unicode normalization. Raw password bytes are hashed exactly
//     as provided.
package password
