// Package app wires application dependencies for the CLI.
//
// It builds the log backend, audit sink, session store, messaging service,
// key rotator and backup store from config.Config, exposing them via the
// App struct for commands to use.
package app
