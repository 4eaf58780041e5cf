package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/op/go-logging.v1"

	"confide/internal/audit"
	"confide/internal/crypto"
	"confide/internal/domain"
	"confide/internal/util/memzero"
)

// DefaultCapacity bounds the session table when the caller does not.
const DefaultCapacity = 1024

// ErrNoSession indicates there is no active session for the user; callers
// must create one first.
var ErrNoSession = errors.New("no active session for user")

// Store is the process-local session table.
type Store struct {
	log  *logging.Logger
	sink audit.Sink
	clk  clock.Clock

	// mu serializes create, restore, and destroy so those check-then-act
	// sequences stay atomic. The LRU cache and sessions carry their own
	// locks for everything else.
	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
}

// NewStore builds a session table holding at most capacity sessions. A nil
// clock falls back to the wall clock; a nil sink discards audit events.
func NewStore(capacity int, clk clock.Clock, log *logging.Logger, sink audit.Sink) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.New()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	s := &Store{log: log, sink: sink, clk: clk}
	cache, err := lru.NewWithEvict[string, *Session](capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("session table: %w", err)
	}
	s.sessions = cache
	return s, nil
}

func (s *Store) onEvict(userID string, sess *Session) {
	sess.wipe()
	if sess.destroyed.Load() {
		// Explicit destroy or replace; the caller records its own event.
		return
	}
	s.log.Warningf("session %q evicted at capacity", userID)
	s.sink.Record(audit.Event{Kind: audit.EventSessionEvicted, UserID: userID, At: s.clk.Now()})
}

// CreateSession returns the existing session for userID or registers a new
// one with a fresh key pair. It never resets an existing session's
// shared-key cache.
func (s *Store) CreateSession(userID string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("create session: empty user id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions.Get(userID); ok {
		return sess, nil
	}
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		s.log.Errorf("create session %q: key generation failed: %v", userID, err)
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess := newSession(userID, kp, s.clk.Now())
	s.sessions.Add(userID, sess)
	s.log.Debugf("session created for %q (pub %s)", userID, crypto.Fingerprint(kp.Public))
	s.sink.Record(audit.Event{Kind: audit.EventSessionCreated, UserID: userID, At: s.clk.Now()})
	return sess, nil
}

// GetSession looks up the active session for userID. It does not create.
func (s *Store) GetSession(userID string) (*Session, error) {
	if sess, ok := s.sessions.Get(userID); ok {
		return sess, nil
	}
	return nil, ErrNoSession
}

// flightResult carries a derived key together with the session generation
// it was derived under.
type flightResult struct {
	key domain.SharedKey
	gen uint64
}

// GetOrCreateSharedKey returns the symmetric key shared between sess's user
// and peerID, deriving and caching it on first use.
//
// Concurrent calls for the same (session, peer) pair collapse into a single
// derivation; calls for different peers proceed in parallel. A rotation
// landing mid-derivation wins: the stale result is discarded and the
// derivation retried under the new key pair, so a cleared cache is never
// repopulated with an old key. The flight group belongs to the session
// instance, so a derivation in flight on a destroyed session cannot leak
// its result into a replacement session for the same user.
func (s *Store) GetOrCreateSharedKey(sess *Session, peerID string, peerPub domain.PublicKey) (domain.SharedKey, error) {
	if sess == nil {
		return domain.SharedKey{}, ErrNoSession
	}
	if peerID == "" {
		return domain.SharedKey{}, fmt.Errorf("shared key: empty peer id")
	}
	if peerPub.IsZero() {
		return domain.SharedKey{}, fmt.Errorf("shared key: zero peer public key")
	}

	if key, ok, _, _ := sess.lookup(peerID); ok {
		return key, nil
	}

	for {
		v, err, _ := sess.flights.Do(peerID, func() (interface{}, error) {
			key, ok, kp, gen := sess.lookup(peerID)
			if ok {
				return flightResult{key: key, gen: gen}, nil
			}
			derived, err := crypto.DeriveSharedKey(kp.Private, peerPub)
			if err != nil {
				return nil, err
			}
			return flightResult{key: derived, gen: gen}, nil
		})
		if err != nil {
			s.log.Errorf("derive shared key %q->%q: %v", sess.UserID, peerID, err)
			return domain.SharedKey{}, fmt.Errorf("shared key: %w", err)
		}
		res := v.(flightResult)
		if sess.store(peerID, res.gen, res.key) {
			return res.key, nil
		}
		// The key pair rotated while we were deriving. Forget the flight so
		// the next round re-executes, and try again under the new pair.
		sess.flights.Forget(peerID)
		memzero.Zero(res.key[:])
	}
}

// RotateSessionKeys generates a fresh key pair for sess and clears its
// shared-key cache; keys derived under the old pair are no longer valid.
func (s *Store) RotateSessionKeys(sess *Session) error {
	if sess == nil {
		return ErrNoSession
	}
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		s.log.Errorf("rotate session %q: key generation failed: %v", sess.UserID, err)
		return fmt.Errorf("rotate session: %w", err)
	}
	sess.rotate(kp)
	s.log.Infof("session keys rotated for %q (pub %s)", sess.UserID, crypto.Fingerprint(kp.Public))
	s.sink.Record(audit.Event{Kind: audit.EventSessionRotated, UserID: sess.UserID, At: s.clk.Now()})
	return nil
}

// DestroySession removes and wipes the session for userID. Destroying an
// unknown user is a no-op.
func (s *Store) DestroySession(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Peek(userID)
	if !ok {
		return
	}
	sess.destroyed.Store(true)
	s.sessions.Remove(userID)
	s.log.Debugf("session destroyed for %q", userID)
	s.sink.Record(audit.Event{Kind: audit.EventSessionDestroyed, UserID: userID, At: s.clk.Now()})
}

// RestoreSession installs a previously backed-up key pair as the active
// session for userID, replacing any existing session. The pair is verified
// before installation.
func (s *Store) RestoreSession(userID string, kp domain.KeyPair) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("restore session: empty user id")
	}
	if !crypto.VerifyKeyPair(kp) {
		return nil, fmt.Errorf("restore session: key pair fails verification")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.sessions.Peek(userID); ok {
		old.destroyed.Store(true)
		s.sessions.Remove(userID)
	}
	sess := newSession(userID, kp, s.clk.Now())
	s.sessions.Add(userID, sess)
	s.log.Infof("session restored for %q (pub %s)", userID, crypto.Fingerprint(kp.Public))
	s.sink.Record(audit.Event{Kind: audit.EventSessionRestored, UserID: userID, At: s.clk.Now()})
	return sess, nil
}

// Len reports how many sessions are active.
func (s *Store) Len() int {
	return s.sessions.Len()
}
