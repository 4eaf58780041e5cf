// Package commands defines the confide CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init         Create a user identity and a passphrase-protected backup
//   - fingerprint  Print a user's public key fingerprint
//   - send         Encrypt a message for a peer, printing the JSON record
//   - recv         Decrypt a JSON message record from stdin
//   - rotate       Rotate a user's session keys and update the backup
//   - backup       Export a user's sealed keypair to a file
//   - restore      Import a sealed keypair file into the backup store
//   - destroy      Destroy a user's session and delete the backup
//
// # Implementation
//
// The root command loads the TOML config and builds a dependency graph
// (log backend, session store, messaging service, rotator, backup store)
// before any subcommand runs, so handlers share one app context. Sessions
// are in-memory only; commands that act for an existing user restore the
// keypair from the backup store first, which is why most of them require
// the passphrase flag.
package commands
