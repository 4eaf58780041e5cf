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

// New constructs the dependency graph from cfg. The config is fixed up and
// validated first, so a partially filled (or zero) Config is acceptable.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}

	backend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, err
	}

	clk := clock.New()
	sink := audit.NewLogSink(backend.GetLogger("audit"))

	sessions, err := session.NewStore(cfg.Sessions.Capacity, clk, backend.GetLogger("session"), sink)
	if err != nil {
		return nil, err
	}

	tags := prooftag.New(clk, cfg.Messaging.FreshnessWindow.Duration)

	messages, err := messaging.New(sessions, tags, clk, backend.GetLogger("messaging"), sink, messaging.Options{
		VerifyProofs: cfg.Messaging.VerifyProofs,
		SignMessages: cfg.Messaging.SignMessages,
	})
	if err != nil {
		return nil, err
	}

	rotator, err := rotation.New(cfg.Rotation.Interval.Duration, cfg.Rotation.Overlap.Duration,
		clk, backend.GetLogger("rotation"), sink)
	if err != nil {
		return nil, err
	}

	var backups *backup.Store
	if cfg.Backup.Path != "" {
		backups, err = backup.Open(cfg.Backup.Path, backend.GetLogger("backup"))
		if err != nil {
			return nil, err
		}
	}

	// Nothing below can fail; the rotation loop only starts once the whole
	// graph is built, so an error return never leaks a goroutine.
	rotator.Start()

	return &App{
		Cfg:        cfg,
		LogBackend: backend,
		Clock:      clk,
		Sink:       sink,
		Sessions:   sessions,
		Tags:       tags,
		Messages:   messages,
		Rotator:    rotator,
		Backups:    backups,
	}, nil
}
