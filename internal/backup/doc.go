// Package backup persists passphrase-protected key pair backups so a
// user's identity can survive a process restart. Each record is
// CBOR-encoded, sealed with a key derived from the passphrase via scrypt,
// encrypted with ChaCha20-Poly1305, and stored in a bolt database keyed by
// user id. The session table itself never persists anything; this is the
// only durable state in the library.
package backup
