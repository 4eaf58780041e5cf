package session

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"confide/internal/domain"
	"confide/internal/util/memzero"
)

// Session is one user's active cryptographic state: their key pair plus the
// shared keys derived so far, one per peer. All methods are safe for
// concurrent use.
type Session struct {
	UserID    string
	CreatedAt time.Time

	mu         sync.RWMutex
	keyPair    domain.KeyPair
	sharedKeys map[string]*domain.SharedKey
	generation uint64

	// flights dedups per-peer key derivation. It lives on the session, not
	// the store, so a session recreated after destroy can never satisfy a
	// flight started on its predecessor.
	flights singleflight.Group

	destroyed atomic.Bool
}

func newSession(userID string, kp domain.KeyPair, now time.Time) *Session {
	return &Session{
		UserID:     userID,
		CreatedAt:  now,
		keyPair:    kp,
		sharedKeys: make(map[string]*domain.SharedKey),
	}
}

// KeyPair returns the session's current key pair.
func (s *Session) KeyPair() domain.KeyPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyPair
}

// PublicKey returns the session's current public key.
func (s *Session) PublicKey() domain.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyPair.Public
}

// Generation increments every time the session's key pair changes. Cached
// shared keys are only valid for the generation they were derived under.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// CachedPeers returns how many shared keys the session currently holds.
func (s *Session) CachedPeers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sharedKeys)
}

// lookup returns the cached key for peerID, or the material needed to
// derive one, in a single consistent snapshot.
func (s *Session) lookup(peerID string) (key domain.SharedKey, ok bool, kp domain.KeyPair, gen uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, exists := s.sharedKeys[peerID]; exists {
		return *k, true, s.keyPair, s.generation
	}
	return domain.SharedKey{}, false, s.keyPair, s.generation
}

// store caches key for peerID if the session is still at generation gen.
// A false return means the key pair rotated since the key was derived and
// the stale key must not enter the cache.
func (s *Session) store(peerID string, gen uint64, key domain.SharedKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	k := key
	s.sharedKeys[peerID] = &k
	return true
}

// rotate swaps in a fresh key pair, bumps the generation, and clears the
// shared-key cache. Keys derived under the old pair are invalid against it.
func (s *Session) rotate(kp domain.KeyPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.keyPair
	s.keyPair = kp
	s.generation++
	s.clearLocked()
	memzero.Zero(old.Private[:])
}

// wipe destroys all key material held by the session.
func (s *Session) wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	memzero.Zero(s.keyPair.Private[:])
}

func (s *Session) clearLocked() {
	for peer, key := range s.sharedKeys {
		memzero.Zero(key[:])
		delete(s.sharedKeys, peer)
	}
}
