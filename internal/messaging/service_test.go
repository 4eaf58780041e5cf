package messaging_test

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"confide/internal/audit"
	"confide/internal/crypto"
	"confide/internal/domain"
	"confide/internal/log"
	"confide/internal/messaging"
	"confide/internal/prooftag"
	"confide/internal/session"
)

type fixture struct {
	store *session.Store
	svc   *messaging.Service
	mock  *clock.Mock
	sink  *audit.ChannelSink
}

func newFixture(t *testing.T, opts messaging.Options) *fixture {
	t.Helper()
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	mock := clock.NewMock()
	mock.Set(time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC))
	sink := audit.NewChannelSink(64)

	store, err := session.NewStore(16, mock, backend.GetLogger("session"), audit.NopSink{})
	require.NoError(t, err)
	tags := prooftag.New(mock, 5*time.Minute)
	svc, err := messaging.New(store, tags, mock, backend.GetLogger("messaging"), sink, opts)
	require.NoError(t, err)
	return &fixture{store: store, svc: svc, mock: mock, sink: sink}
}

func (f *fixture) metadata(sender, recipient string) domain.MessageMetadata {
	return domain.MessageMetadata{
		SenderID:    sender,
		RecipientID: recipient,
		ThreadID:    "thread-1",
		Timestamp:   f.mock.Now().UnixMilli(),
		Type:        domain.MessageText,
		Status:      domain.StatusSent,
	}
}

func (f *fixture) kinds() []audit.Kind {
	var kinds []audit.Kind
	for {
		select {
		case ev := <-f.sink.Events():
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestSendReceive_EndToEnd(t *testing.T) {
	f := newFixture(t, messaging.Options{VerifyProofs: true})

	alice, err := f.store.CreateSession("alice")
	require.NoError(t, err)
	bob, err := f.store.CreateSession("bob")
	require.NoError(t, err)

	msg, err := f.svc.SendEncryptedMessage(alice, "bob", bob.PublicKey(), []byte("hello"), f.metadata("alice", "bob"))
	require.NoError(t, err)

	require.Equal(t, domain.MessageText, msg.Metadata.Type)
	_, err = uuid.Parse(msg.ID)
	require.NoError(t, err)
	require.NotEmpty(t, msg.EncryptedContent)
	require.Len(t, msg.IV, crypto.NonceSize)
	require.True(t, prooftag.Verify(msg.Proof.Signature))
	require.NotContains(t, string(msg.EncryptedContent), "hello")

	got, err := f.svc.ReceiveAndDecrypt(msg, bob, alice.PublicKey())
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	// One flipped ciphertext byte must surface as a decryption failure.
	tampered := msg
	tampered.EncryptedContent = append([]byte(nil), msg.EncryptedContent...)
	tampered.EncryptedContent[0] ^= 0x01
	_, err = f.svc.ReceiveAndDecrypt(tampered, bob, alice.PublicKey())
	require.ErrorIs(t, err, crypto.ErrDecryptionFailed)

	kinds := f.kinds()
	require.Contains(t, kinds, audit.EventMessageEncrypted)
	require.Contains(t, kinds, audit.EventMessageDecrypted)
	require.Contains(t, kinds, audit.EventDecryptFailed)
}

func TestSend_InvalidMetadata(t *testing.T) {
	f := newFixture(t, messaging.Options{})

	alice, err := f.store.CreateSession("alice")
	require.NoError(t, err)
	bob, err := f.store.CreateSession("bob")
	require.NoError(t, err)

	stale := f.metadata("alice", "bob")
	stale.Timestamp = f.mock.Now().Add(-10 * time.Minute).UnixMilli()
	_, err = f.svc.SendEncryptedMessage(alice, "bob", bob.PublicKey(), []byte("hi"), stale)
	var verr *prooftag.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "timestamp", verr.Field)

	anonymous := f.metadata("", "bob")
	_, err = f.svc.SendEncryptedMessage(alice, "bob", bob.PublicKey(), []byte("hi"), anonymous)
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "sender_id", verr.Field)

	// Validation failures must not populate the shared-key cache.
	require.Equal(t, 0, alice.CachedPeers())
}

func TestReceive_ProofGate(t *testing.T) {
	f := newFixture(t, messaging.Options{VerifyProofs: true})

	alice, err := f.store.CreateSession("alice")
	require.NoError(t, err)
	bob, err := f.store.CreateSession("bob")
	require.NoError(t, err)

	msg, err := f.svc.SendEncryptedMessage(alice, "bob", bob.PublicKey(), []byte("hello"), f.metadata("alice", "bob"))
	require.NoError(t, err)

	malformed := msg
	malformed.Proof.Signature = "deadbeef"
	_, err = f.svc.ReceiveAndDecrypt(malformed, bob, alice.PublicKey())
	require.ErrorIs(t, err, prooftag.ErrProofInvalid)
	require.NotErrorIs(t, err, crypto.ErrDecryptionFailed)

	require.Contains(t, f.kinds(), audit.EventProofRejected)
}

func TestReceive_ProofIgnoredWhenDisabled(t *testing.T) {
	f := newFixture(t, messaging.Options{VerifyProofs: false})

	alice, err := f.store.CreateSession("alice")
	require.NoError(t, err)
	bob, err := f.store.CreateSession("bob")
	require.NoError(t, err)

	msg, err := f.svc.SendEncryptedMessage(alice, "bob", bob.PublicKey(), []byte("hello"), f.metadata("alice", "bob"))
	require.NoError(t, err)

	msg.Proof.Signature = "not-hex!"
	got, err := f.svc.ReceiveAndDecrypt(msg, bob, alice.PublicKey())
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestSigning(t *testing.T) {
	f := newFixture(t, messaging.Options{SignMessages: true})

	alice, err := f.store.CreateSession("alice")
	require.NoError(t, err)
	bob, err := f.store.CreateSession("bob")
	require.NoError(t, err)

	msg, err := f.svc.SendEncryptedMessage(alice, "bob", bob.PublicKey(), []byte("signed hello"), f.metadata("alice", "bob"))
	require.NoError(t, err)
	require.NotEmpty(t, msg.Signature)

	pub, ok := f.svc.SigningPublicKey()
	require.True(t, ok)
	require.True(t, messaging.VerifyMessageSignature(msg, pub))

	// Any routing mutation breaks the signature.
	rerouted := msg
	rerouted.Metadata.ThreadID = "thread-2"
	require.False(t, messaging.VerifyMessageSignature(rerouted, pub))
}

func TestSigning_Disabled(t *testing.T) {
	f := newFixture(t, messaging.Options{})

	alice, err := f.store.CreateSession("alice")
	require.NoError(t, err)
	bob, err := f.store.CreateSession("bob")
	require.NoError(t, err)

	msg, err := f.svc.SendEncryptedMessage(alice, "bob", bob.PublicKey(), []byte("hello"), f.metadata("alice", "bob"))
	require.NoError(t, err)
	require.Empty(t, msg.Signature)

	_, ok := f.svc.SigningPublicKey()
	require.False(t, ok)

	var pub domain.SigningPublicKey
	require.False(t, messaging.VerifyMessageSignature(msg, pub))
}

func TestNilSession(t *testing.T) {
	f := newFixture(t, messaging.Options{})

	_, err := f.svc.SendEncryptedMessage(nil, "bob", domain.PublicKey{}, []byte("hi"), f.metadata("alice", "bob"))
	require.ErrorIs(t, err, session.ErrNoSession)

	_, err = f.svc.ReceiveAndDecrypt(domain.SecureMessage{}, nil, domain.PublicKey{})
	require.ErrorIs(t, err, session.ErrNoSession)
}

type failingProvider struct{}

func (failingProvider) GetOrCreateSharedKey(*session.Session, string, domain.PublicKey) (domain.SharedKey, error) {
	return domain.SharedKey{}, errors.New("provider down")
}

func TestKeyProviderFailurePropagates(t *testing.T) {
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	mock := clock.NewMock()
	mock.Set(time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC))

	store, err := session.NewStore(4, mock, backend.GetLogger("session"), nil)
	require.NoError(t, err)
	alice, err := store.CreateSession("alice")
	require.NoError(t, err)

	tags := prooftag.New(mock, 0)
	svc, err := messaging.New(failingProvider{}, tags, mock, backend.GetLogger("messaging"), nil, messaging.Options{})
	require.NoError(t, err)

	md := domain.MessageMetadata{
		SenderID:    "alice",
		RecipientID: "bob",
		ThreadID:    "thread-1",
		Timestamp:   mock.Now().UnixMilli(),
		Type:        domain.MessageText,
		Status:      domain.StatusSent,
	}
	_, err = svc.SendEncryptedMessage(alice, "bob", alice.PublicKey(), []byte("hi"), md)
	require.ErrorContains(t, err, "provider down")
}
