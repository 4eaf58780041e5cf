package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"confide/internal/log"
)

const (
	defaultLogLevel         = "NOTICE"
	defaultSessionCapacity  = 1024
	defaultRotationInterval = 24 * time.Hour
	defaultRotationOverlap  = 5 * time.Minute
	defaultFreshnessWindow  = 5 * time.Minute
)

// Duration wraps time.Duration so config values can be written in the
// usual "24h" / "5m" notation.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	if lCfg.Level == "" {
		lCfg.Level = defaultLogLevel
	}
	if err := log.ValidateLevel(lCfg.Level); err != nil {
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = strings.ToUpper(lCfg.Level)
	return nil
}

// Sessions configures the in-memory session table.
type Sessions struct {
	// Capacity bounds the number of concurrently active sessions. Past
	// this point the least recently used session is evicted and wiped.
	Capacity int
}

func (sCfg *Sessions) validate() error {
	if sCfg.Capacity < 0 {
		return fmt.Errorf("config: Sessions: Capacity %d is invalid", sCfg.Capacity)
	}
	if sCfg.Capacity == 0 {
		sCfg.Capacity = defaultSessionCapacity
	}
	return nil
}

// Rotation configures the forward-secrecy key rotator.
type Rotation struct {
	// Interval is the time between scheduled keypair rotations.
	Interval Duration

	// Overlap is the grace period past Interval during which material
	// issued under the previous keypair is still accepted.
	Overlap Duration
}

func (rCfg *Rotation) validate() error {
	if rCfg.Interval.Duration < 0 {
		return fmt.Errorf("config: Rotation: Interval %v is invalid", rCfg.Interval.Duration)
	}
	if rCfg.Overlap.Duration < 0 {
		return fmt.Errorf("config: Rotation: Overlap %v is invalid", rCfg.Overlap.Duration)
	}
	if rCfg.Interval.Duration == 0 {
		rCfg.Interval.Duration = defaultRotationInterval
	}
	if rCfg.Overlap.Duration == 0 {
		rCfg.Overlap.Duration = defaultRotationOverlap
	}
	return nil
}

// Messaging configures the messaging service.
type Messaging struct {
	// VerifyProofs rejects received messages whose integrity tag fails
	// the format check. Off by default; the tag is not an authenticity
	// guarantee either way.
	VerifyProofs bool

	// SignMessages attaches an Ed25519 signature to outgoing messages.
	SignMessages bool

	// FreshnessWindow bounds the allowed clock drift on message
	// metadata timestamps, in both directions.
	FreshnessWindow Duration
}

func (mCfg *Messaging) validate() error {
	if mCfg.FreshnessWindow.Duration < 0 {
		return fmt.Errorf("config: Messaging: FreshnessWindow %v is invalid", mCfg.FreshnessWindow.Duration)
	}
	if mCfg.FreshnessWindow.Duration == 0 {
		mCfg.FreshnessWindow.Duration = defaultFreshnessWindow
	}
	return nil
}

// Backup configures the durable keypair backup store.
type Backup struct {
	// Path is the bbolt database file. Empty disables backups.
	Path string
}

// Config is the top level confide configuration.
type Config struct {
	Logging   *Logging
	Sessions  *Sessions
	Rotation  *Rotation
	Messaging *Messaging
	Backup    *Backup
}

// FixupAndValidate applies defaults to missing entries and validates the
// configuration sections.
func (cfg *Config) FixupAndValidate() error {
	// Handle missing sections.
	if cfg.Logging == nil {
		cfg.Logging = &Logging{Level: defaultLogLevel}
	}
	if cfg.Sessions == nil {
		cfg.Sessions = &Sessions{}
	}
	if cfg.Rotation == nil {
		cfg.Rotation = &Rotation{}
	}
	if cfg.Messaging == nil {
		cfg.Messaging = &Messaging{}
	}
	if cfg.Backup == nil {
		cfg.Backup = &Backup{}
	}

	// Validate/fixup the various sections.
	if err := cfg.Logging.validate(); err != nil {
		return err
	}
	if err := cfg.Sessions.validate(); err != nil {
		return err
	}
	if err := cfg.Rotation.validate(); err != nil {
		return err
	}
	if err := cfg.Messaging.validate(); err != nil {
		return err
	}
	return nil
}

// Load parses and validates the provided buffer b as a config file body
// and returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
