// Package prooftag produces and checks lightweight integrity tags for
// encrypted messages.
//
// A tag binds a message's ciphertext to its routing metadata (sender,
// recipient, thread, timestamp) at generation time: the tag is an
// HMAC-SHA256 over those fields keyed by a freshly generated random nonce,
// and the accompanying PublicKey field is a second HMAC over the nonce
// keyed by the first. Any mutation of the bound fields invalidates the tag.
//
// The nonce is never published, so third parties cannot recompute the tag.
// Verify therefore checks shape only (hex, at least 64 characters) and a
// true result must not be read as proof of authorship. Callers that need
// sender authenticity use the Ed25519 signature carried separately on the
// message.
//
// The package also validates message metadata: required fields, enum
// membership, and timestamp freshness against an injectable clock.
package prooftag
