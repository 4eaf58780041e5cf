// Package domain defines the core data models shared across the library.
// It contains plain types (keys, payloads, message records) only; behaviour
// lives in the packages that operate on them.
package domain
