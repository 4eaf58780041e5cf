package session_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"confide/internal/audit"
	"confide/internal/crypto"
	"confide/internal/domain"
	"confide/internal/log"
	"confide/internal/session"
)

func newTestStore(t *testing.T, capacity int) (*session.Store, *audit.ChannelSink) {
	t.Helper()
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	sink := audit.NewChannelSink(64)
	store, err := session.NewStore(capacity, nil, backend.GetLogger("session"), sink)
	require.NoError(t, err)
	return store, sink
}

func drainKinds(sink *audit.ChannelSink) []audit.Kind {
	var kinds []audit.Kind
	for {
		select {
		case ev := <-sink.Events():
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestCreateSession_Idempotent(t *testing.T) {
	store, _ := newTestStore(t, 8)

	first, err := store.CreateSession("alice")
	require.NoError(t, err)

	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, err = store.GetOrCreateSharedKey(first, "bob", peer.Public)
	require.NoError(t, err)
	require.Equal(t, 1, first.CachedPeers())

	second, err := store.CreateSession("alice")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, first.PublicKey(), second.PublicKey())

	// Re-creating must not reset the shared-key cache.
	require.Equal(t, 1, second.CachedPeers())
}

func TestGetSession(t *testing.T) {
	store, _ := newTestStore(t, 8)

	_, err := store.GetSession("nobody")
	require.ErrorIs(t, err, session.ErrNoSession)

	created, err := store.CreateSession("alice")
	require.NoError(t, err)
	got, err := store.GetSession("alice")
	require.NoError(t, err)
	require.Same(t, created, got)
}

func TestGetOrCreateSharedKey_CachesAndAgrees(t *testing.T) {
	store, _ := newTestStore(t, 8)

	alice, err := store.CreateSession("alice")
	require.NoError(t, err)
	bob, err := store.CreateSession("bob")
	require.NoError(t, err)

	ab, err := store.GetOrCreateSharedKey(alice, "bob", bob.PublicKey())
	require.NoError(t, err)
	ba, err := store.GetOrCreateSharedKey(bob, "alice", alice.PublicKey())
	require.NoError(t, err)
	require.Equal(t, ab, ba, "both sides must derive the same conversation key")

	again, err := store.GetOrCreateSharedKey(alice, "bob", bob.PublicKey())
	require.NoError(t, err)
	require.Equal(t, ab, again)
	require.Equal(t, 1, alice.CachedPeers())
}

func TestGetOrCreateSharedKey_Validation(t *testing.T) {
	store, _ := newTestStore(t, 8)
	alice, err := store.CreateSession("alice")
	require.NoError(t, err)

	_, err = store.GetOrCreateSharedKey(nil, "bob", alice.PublicKey())
	require.ErrorIs(t, err, session.ErrNoSession)

	_, err = store.GetOrCreateSharedKey(alice, "", alice.PublicKey())
	require.Error(t, err)

	_, err = store.GetOrCreateSharedKey(alice, "bob", domain.PublicKey{})
	require.Error(t, err)
}

func TestRotateSessionKeys_ClearsCache(t *testing.T) {
	store, sink := newTestStore(t, 8)

	alice, err := store.CreateSession("alice")
	require.NoError(t, err)
	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	before, err := store.GetOrCreateSharedKey(alice, "bob", peer.Public)
	require.NoError(t, err)
	oldPub := alice.PublicKey()
	oldGen := alice.Generation()

	require.NoError(t, store.RotateSessionKeys(alice))

	require.Equal(t, 0, alice.CachedPeers())
	require.NotEqual(t, oldPub, alice.PublicKey())
	require.Equal(t, oldGen+1, alice.Generation())

	after, err := store.GetOrCreateSharedKey(alice, "bob", peer.Public)
	require.NoError(t, err)
	require.NotEqual(t, before, after, "rotation must invalidate previously derived keys")

	kinds := drainKinds(sink)
	require.Contains(t, kinds, audit.EventSessionRotated)
}

func TestDestroySession(t *testing.T) {
	store, sink := newTestStore(t, 8)

	first, err := store.CreateSession("alice")
	require.NoError(t, err)
	store.DestroySession("alice")

	_, err = store.GetSession("alice")
	require.ErrorIs(t, err, session.ErrNoSession)

	// Destroying an unknown user is a no-op.
	store.DestroySession("alice")

	// A subsequent create starts from scratch with fresh keys.
	second, err := store.CreateSession("alice")
	require.NoError(t, err)
	require.NotEqual(t, first.PublicKey(), second.PublicKey())

	kinds := drainKinds(sink)
	require.Contains(t, kinds, audit.EventSessionDestroyed)
	require.NotContains(t, kinds, audit.EventSessionEvicted)
}

func TestRestoreSession(t *testing.T) {
	store, sink := newTestStore(t, 8)

	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	sess, err := store.RestoreSession("alice", kp)
	require.NoError(t, err)
	require.Equal(t, kp.Public, sess.PublicKey())

	// A corrupt pair is rejected before it can replace anything.
	bad := kp
	bad.Public[3] ^= 0xFF
	_, err = store.RestoreSession("alice", bad)
	require.Error(t, err)

	got, err := store.GetSession("alice")
	require.NoError(t, err)
	require.Equal(t, kp.Public, got.PublicKey())

	kinds := drainKinds(sink)
	require.Contains(t, kinds, audit.EventSessionRestored)
}

func TestCapacityEviction(t *testing.T) {
	store, sink := newTestStore(t, 2)

	_, err := store.CreateSession("u1")
	require.NoError(t, err)
	_, err = store.CreateSession("u2")
	require.NoError(t, err)
	_, err = store.CreateSession("u3")
	require.NoError(t, err)

	require.Equal(t, 2, store.Len())
	_, err = store.GetSession("u1")
	require.ErrorIs(t, err, session.ErrNoSession, "least recently used session should be evicted")

	var evicted []string
	for _, ev := range drainEvents(sink) {
		if ev.Kind == audit.EventSessionEvicted {
			evicted = append(evicted, ev.UserID)
		}
	}
	require.Equal(t, []string{"u1"}, evicted)
}

func drainEvents(sink *audit.ChannelSink) []audit.Event {
	var evs []audit.Event
	for {
		select {
		case ev := <-sink.Events():
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestSharedKey_ConcurrentCallersAgree(t *testing.T) {
	store, _ := newTestStore(t, 8)

	alice, err := store.CreateSession("alice")
	require.NoError(t, err)
	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	const callers = 32
	keys := make([]domain.SharedKey, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			key, err := store.GetOrCreateSharedKey(alice, "bob", peer.Public)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			keys[i] = key
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < callers; i++ {
		require.Equal(t, keys[0], keys[i])
	}
	require.Equal(t, 1, alice.CachedPeers())
}

func TestSharedKey_DistinctPeersInParallel(t *testing.T) {
	store, _ := newTestStore(t, 8)

	alice, err := store.CreateSession("alice")
	require.NoError(t, err)

	peers := make(map[string]domain.KeyPair, 8)
	for _, id := range []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7"} {
		kp, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		peers[id] = kp
	}

	var wg sync.WaitGroup
	for id, kp := range peers {
		wg.Add(1)
		go func(id string, pub domain.PublicKey) {
			defer wg.Done()
			if _, err := store.GetOrCreateSharedKey(alice, id, pub); err != nil {
				t.Errorf("peer %s: %v", id, err)
			}
		}(id, kp.Public)
	}
	wg.Wait()

	require.Equal(t, len(peers), alice.CachedPeers())
	for id, kp := range peers {
		want, err := crypto.DeriveSharedKey(alice.KeyPair().Private, kp.Public)
		require.NoError(t, err)
		got, err := store.GetOrCreateSharedKey(alice, id, kp.Public)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestSharedKey_RecreatedSessionNeverInheritsOldDerivation(t *testing.T) {
	store, _ := newTestStore(t, 8)

	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	// Race derivations on a doomed session object against its destruction
	// and recreation. A derivation still in flight on the old session must
	// never satisfy a lookup on its replacement, even though both sessions
	// start at generation zero.
	for i := 0; i < 200; i++ {
		old, err := store.CreateSession("alice")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// The old pointer stays usable after destroy; only the
				// store entry is replaced.
				_, _ = store.GetOrCreateSharedKey(old, "bob", peer.Public)
			}()
		}

		store.DestroySession("alice")
		fresh, err := store.CreateSession("alice")
		require.NoError(t, err)
		got, err := store.GetOrCreateSharedKey(fresh, "bob", peer.Public)
		require.NoError(t, err)
		wg.Wait()

		want, err := crypto.DeriveSharedKey(fresh.KeyPair().Private, peer.Public)
		require.NoError(t, err)
		require.Equal(t, want, got, "iteration %d: fresh session cached a key from its predecessor", i)

		store.DestroySession("alice")
	}
}

func TestSharedKey_RotationNeverResurrectsStaleKey(t *testing.T) {
	store, _ := newTestStore(t, 8)

	alice, err := store.CreateSession("alice")
	require.NoError(t, err)
	peer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := store.GetOrCreateSharedKey(alice, "bob", peer.Public); err != nil {
					t.Errorf("derive: %v", err)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		require.NoError(t, store.RotateSessionKeys(alice))
	}
	close(stop)
	wg.Wait()

	// Whatever the cache holds now must match the current key pair.
	got, err := store.GetOrCreateSharedKey(alice, "bob", peer.Public)
	require.NoError(t, err)
	want, err := crypto.DeriveSharedKey(alice.KeyPair().Private, peer.Public)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
