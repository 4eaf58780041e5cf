package messaging

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"gopkg.in/op/go-logging.v1"

	"confide/internal/audit"
	"confide/internal/crypto"
	"confide/internal/domain"
	"confide/internal/prooftag"
	"confide/internal/session"
)

// KeyProvider supplies conversation keys. *session.Store satisfies it.
type KeyProvider interface {
	GetOrCreateSharedKey(sess *session.Session, peerID string, peerPub domain.PublicKey) (domain.SharedKey, error)
}

// Options tune the facade's behaviour.
type Options struct {
	// VerifyProofs rejects received messages whose integrity tag fails the
	// format check.
	VerifyProofs bool

	// SignMessages attaches an Ed25519 signature to every sent message.
	SignMessages bool
}

// Service sequences metadata validation, key agreement, encryption, and
// integrity tagging for message send and receive.
type Service struct {
	keys KeyProvider
	tags *prooftag.Generator
	clk  clock.Clock
	log  *logging.Logger
	sink audit.Sink
	opts Options

	signPriv domain.SigningPrivateKey
	signPub  domain.SigningPublicKey
}

// New constructs the messaging facade. When opts.SignMessages is set a
// fresh Ed25519 identity is generated for the service's lifetime.
func New(keys KeyProvider, tags *prooftag.Generator, clk clock.Clock, log *logging.Logger, sink audit.Sink, opts Options) (*Service, error) {
	if clk == nil {
		clk = clock.New()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	s := &Service{
		keys: keys,
		tags: tags,
		clk:  clk,
		log:  log,
		sink: sink,
		opts: opts,
	}
	if opts.SignMessages {
		priv, pub, err := crypto.GenerateSigningKeyPair()
		if err != nil {
			return nil, fmt.Errorf("messaging: signing identity: %w", err)
		}
		s.signPriv, s.signPub = priv, pub
	}
	return s, nil
}

// SendEncryptedMessage validates md, obtains the shared key for the
// recipient, encrypts plaintext, and attaches the integrity tag. It fails
// fast on the first invalid step and applies no partial side effects; the
// derived shared key stays cached regardless, since derivation is
// deterministic for valid inputs.
func (s *Service) SendEncryptedMessage(sess *session.Session, recipientID string, recipientPub domain.PublicKey, plaintext []byte, md domain.MessageMetadata) (domain.SecureMessage, error) {
	if sess == nil {
		return domain.SecureMessage{}, session.ErrNoSession
	}
	if err := s.tags.ValidateMetadata(md); err != nil {
		return domain.SecureMessage{}, err
	}
	key, err := s.keys.GetOrCreateSharedKey(sess, recipientID, recipientPub)
	if err != nil {
		return domain.SecureMessage{}, err
	}
	payload, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return domain.SecureMessage{}, err
	}
	proof, err := s.tags.Generate(payload.Content, md)
	if err != nil {
		return domain.SecureMessage{}, err
	}

	msg := domain.SecureMessage{
		ID:               uuid.NewString(),
		EncryptedContent: payload.Content,
		IV:               payload.IV,
		Proof:            proof,
		Metadata:         md,
	}
	if s.opts.SignMessages {
		msg.Signature = crypto.Sign(s.signPriv, signingInput(msg))
	}

	s.log.Debugf("message %s encrypted %q->%q", msg.ID, md.SenderID, recipientID)
	s.sink.Record(audit.Event{
		Kind:      audit.EventMessageEncrypted,
		UserID:    md.SenderID,
		PeerID:    recipientID,
		MessageID: msg.ID,
		At:        s.clk.Now(),
	})
	return msg, nil
}

// ReceiveAndDecrypt obtains the shared key for the sender and opens msg.
// A failed AEAD open surfaces as crypto.ErrDecryptionFailed and a failed
// integrity tag as prooftag.ErrProofInvalid, so callers can tell a wrong
// key or tampered ciphertext apart from a malformed tag.
func (s *Service) ReceiveAndDecrypt(msg domain.SecureMessage, sess *session.Session, senderPub domain.PublicKey) ([]byte, error) {
	if sess == nil {
		return nil, session.ErrNoSession
	}
	key, err := s.keys.GetOrCreateSharedKey(sess, msg.Metadata.SenderID, senderPub)
	if err != nil {
		return nil, err
	}
	plaintext, err := crypto.Decrypt(msg.Payload(), key)
	if err != nil {
		s.log.Warningf("message %s from %q failed to decrypt", msg.ID, msg.Metadata.SenderID)
		s.sink.Record(audit.Event{
			Kind:      audit.EventDecryptFailed,
			UserID:    sess.UserID,
			PeerID:    msg.Metadata.SenderID,
			MessageID: msg.ID,
			At:        s.clk.Now(),
		})
		return nil, err
	}
	if s.opts.VerifyProofs && !prooftag.Verify(msg.Proof.Signature) {
		s.log.Warningf("message %s from %q rejected: malformed integrity tag", msg.ID, msg.Metadata.SenderID)
		s.sink.Record(audit.Event{
			Kind:      audit.EventProofRejected,
			UserID:    sess.UserID,
			PeerID:    msg.Metadata.SenderID,
			MessageID: msg.ID,
			At:        s.clk.Now(),
		})
		return nil, prooftag.ErrProofInvalid
	}
	s.sink.Record(audit.Event{
		Kind:      audit.EventMessageDecrypted,
		UserID:    sess.UserID,
		PeerID:    msg.Metadata.SenderID,
		MessageID: msg.ID,
		At:        s.clk.Now(),
	})
	return plaintext, nil
}

// SigningPublicKey returns the service's Ed25519 verification key. ok is
// false when signing is disabled.
func (s *Service) SigningPublicKey() (pub domain.SigningPublicKey, ok bool) {
	return s.signPub, s.opts.SignMessages
}

// VerifyMessageSignature checks msg's Ed25519 signature under the sender's
// verification key. Messages sent without signing never verify.
func VerifyMessageSignature(msg domain.SecureMessage, senderPub domain.SigningPublicKey) bool {
	if len(msg.Signature) == 0 {
		return false
	}
	return crypto.VerifySignature(senderPub, signingInput(msg), msg.Signature)
}

// signingInput binds a signature to the ciphertext and routing fields.
func signingInput(msg domain.SecureMessage) []byte {
	var b bytes.Buffer
	b.Write(msg.EncryptedContent)
	b.Write(msg.IV)
	b.WriteString(msg.Metadata.SenderID)
	b.WriteString(msg.Metadata.RecipientID)
	b.WriteString(msg.Metadata.ThreadID)
	b.WriteString(strconv.FormatInt(msg.Metadata.Timestamp, 10))
	return b.Bytes()
}

// Compile-time assertion that the session table satisfies KeyProvider.
var _ KeyProvider = (*session.Store)(nil)
