// Package config loads and validates the confide configuration file.
//
// The file is TOML with one table per concern (Logging, Sessions,
// Rotation, Messaging, Backup). Every table and every key is optional;
// FixupAndValidate fills in defaults, so a zero Config is usable and a
// missing file is not an error for callers that start from New-style
// defaults. Durations are written in time.ParseDuration notation, for
// example "24h" or "5m".
package config
