// Package messaging is the orchestration surface the rest of an
// application calls to exchange encrypted messages. Sending validates the
// metadata, obtains the conversation's shared key from the session table,
// seals the plaintext, and attaches an integrity tag; receiving reverses
// the steps and surfaces decryption failures and tag failures as distinct
// errors.
//
// An optional Ed25519 signature provides real sender authenticity, which
// the integrity tag deliberately does not claim to.
package messaging
