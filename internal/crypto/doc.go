// Package crypto exposes the primitives used by confide.
//
// Contents
//
//   - X25519 key generation, clamping and shared-key derivation
//     (GenerateKeyPair, DeriveSharedKey, VerifyKeyPair)
//   - AES-256-GCM authenticated encryption (Encrypt, Decrypt)
//   - Ed25519 key generation, signing and verification
//     (GenerateSigningKeyPair, Sign, VerifySignature)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Callers should treat returned secrets as
// sensitive and rely on memzero when practical to reduce lifetime in memory.
package crypto
