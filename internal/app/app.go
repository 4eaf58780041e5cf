package app

import (
	"github.com/benbjohnson/clock"

	"confide/internal/audit"
	"confide/internal/backup"
	"confide/internal/config"
	"confide/internal/log"
	"confide/internal/messaging"
	"confide/internal/prooftag"
	"confide/internal/rotation"
	"confide/internal/session"
)

// App bundles the backend, stores and services for the CLI.
type App struct {
	Cfg        *config.Config
	LogBackend *log.Backend
	Clock      clock.Clock
	Sink       audit.Sink

	Sessions *session.Store
	Tags     *prooftag.Generator
	Messages *messaging.Service
	Rotator  *rotation.Rotator

	// Backups is nil when no backup path is configured.
	Backups *backup.Store
}

// Shutdown halts the rotator and closes the backup store. The app must not
// be used afterwards.
func (a *App) Shutdown() error {
	a.Rotator.Halt()
	if a.Backups != nil {
		return a.Backups.Close()
	}
	return nil
}
