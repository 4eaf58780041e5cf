// Package session holds the in-process table of active cryptographic
// sessions, one per user, each caching the shared keys derived against
// peers so the ECDH exchange runs once per conversation.
//
// Lifecycle per user: no session, then Active on first CreateSession, then
// Active with fresh keys after RotateSessionKeys (which clears the
// shared-key cache), then gone after DestroySession. A destroyed user can
// be recreated from scratch. The table is a bounded LRU cache; at capacity
// the least recently used session is evicted and its key material wiped.
//
// Nothing here is persisted. Sessions do not survive a process restart;
// durable key backup lives in the backup package.
package session
