package rotation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"gopkg.in/op/go-logging.v1"

	"confide/internal/audit"
	"confide/internal/crypto"
	"confide/internal/domain"
	"confide/internal/util/memzero"
	"confide/internal/worker"
)

const (
	// DefaultInterval is how often the active key pair is replaced.
	DefaultInterval = 24 * time.Hour

	// DefaultOverlap extends acceptance of a prior key past rotation so
	// in-flight messages sealed just before a rotation stay decryptable.
	DefaultOverlap = 5 * time.Minute
)

// ErrNotInitialized is returned when key material is requested from a
// Rotator that was not built with New.
var ErrNotInitialized = errors.New("rotator not initialized")

// Rotator holds the rolling key pair state. There is one per process, not
// one per user. Readers always observe either the pre- or post-rotation
// pair, never a half-updated state.
type Rotator struct {
	worker.Worker

	clk  clock.Clock
	log  *logging.Logger
	sink audit.Sink

	interval time.Duration
	overlap  time.Duration

	mu           sync.RWMutex
	current      domain.KeyPair
	next         domain.KeyPair
	lastRotation time.Time

	startOnce sync.Once
}

// New generates the current and next key pairs and returns a Rotator ready
// for Start. Key generation failure here is fatal to the caller's setup.
func New(interval, overlap time.Duration, clk clock.Clock, log *logging.Logger, sink audit.Sink) (*Rotator, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	if clk == nil {
		clk = clock.New()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	current, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("rotator: %w", err)
	}
	next, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("rotator: %w", err)
	}
	return &Rotator{
		clk:          clk,
		log:          log,
		sink:         sink,
		interval:     interval,
		overlap:      overlap,
		current:      current,
		next:         next,
		lastRotation: clk.Now(),
	}, nil
}

// Start launches the timer-driven rotation loop. Repeated calls are no-ops;
// Halt stops the loop and waits for it to exit.
func (r *Rotator) Start() {
	r.startOnce.Do(func() {
		r.Go(r.loop)
	})
}

func (r *Rotator) loop() {
	timer := r.clk.Timer(r.interval)
	defer timer.Stop()
	for {
		select {
		case <-r.HaltCh():
			return
		case <-timer.C:
			if err := r.Rotate(); err != nil {
				// The stale pair stays active; retry at the next tick.
				r.log.Errorf("scheduled rotation failed: %v", err)
			}
			timer.Reset(r.interval)
		}
	}
}

// Rotate promotes the next key pair to current and generates a fresh next
// pair. On failure the existing pairs are left untouched.
func (r *Rotator) Rotate() error {
	fresh, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("rotate: %w", err)
	}

	r.mu.Lock()
	old := r.current
	promoted := r.next
	r.current = promoted
	r.next = fresh
	r.lastRotation = r.clk.Now()
	r.mu.Unlock()

	memzero.Zero(old.Private[:])
	fp := crypto.Fingerprint(promoted.Public)
	r.log.Noticef("key pair rotated (pub %s)", fp)
	r.sink.Record(audit.Event{Kind: audit.EventKeyPairRotated, At: r.clk.Now(), Detail: fp})
	return nil
}

// CurrentPublicKey returns the active public key.
func (r *Rotator) CurrentPublicKey() (domain.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == (domain.KeyPair{}) {
		return domain.PublicKey{}, ErrNotInitialized
	}
	return r.current.Public, nil
}

// NextPublicKey returns the pending public key, so peers can pre-fetch the
// key the next rotation will activate.
func (r *Rotator) NextPublicKey() (domain.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.next == (domain.KeyPair{}) {
		return domain.PublicKey{}, ErrNotInitialized
	}
	return r.next.Public, nil
}

// SharedSecret computes the ECDH shared secret between the active private
// key and a peer's public key, expanded with HKDF-SHA256. This is the same
// construction sessions use, so the two paths agree on key material.
func (r *Rotator) SharedSecret(peerPub domain.PublicKey) (domain.SharedKey, error) {
	r.mu.RLock()
	kp := r.current
	r.mu.RUnlock()
	if kp == (domain.KeyPair{}) {
		return domain.SharedKey{}, ErrNotInitialized
	}
	return crypto.DeriveSharedKey(kp.Private, peerPub)
}

// IsKeyValid reports whether a key issued at issuedAt is still acceptable:
// its age must not exceed the rotation interval plus the overlap window.
// A zero-value Rotator holds no key material, so nothing is valid.
func (r *Rotator) IsKeyValid(issuedAt time.Time) bool {
	if r.clk == nil {
		return false
	}
	return r.clk.Now().Sub(issuedAt) <= r.interval+r.overlap
}

// LastRotation returns when the active pair was last replaced.
func (r *Rotator) LastRotation() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRotation
}
