// Package rotation maintains the process-wide rolling key pair used for
// transport-level key agreement. A current and a next pair are held at all
// times; on a fixed interval the next pair is promoted and a fresh next
// pair generated, bounding the lifetime of any single negotiated secret.
// Keys issued before a rotation remain acceptable for a short overlap
// window so in-flight messages are not orphaned.
package rotation
