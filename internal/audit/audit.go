// Package audit defines the structured security events emitted by the
// library and the sinks that consume them. Events are fire-and-forget
// notifications for an external audit trail; recording one must never block
// or fail the operation that produced it.
package audit

import (
	"time"

	"gopkg.in/op/go-logging.v1"
)

// Kind identifies an audit event.
type Kind string

const (
	EventSessionCreated   Kind = "session_created"
	EventSessionRestored  Kind = "session_restored"
	EventSessionRotated   Kind = "session_rotated"
	EventSessionDestroyed Kind = "session_destroyed"
	EventSessionEvicted   Kind = "session_evicted"

	EventKeyPairRotated Kind = "keypair_rotated"

	EventMessageEncrypted Kind = "message_encrypted"
	EventMessageDecrypted Kind = "message_decrypted"
	EventDecryptFailed    Kind = "message_decrypt_failed"
	EventProofRejected    Kind = "message_proof_rejected"
)

// Event is one structured audit record.
type Event struct {
	Kind      Kind
	UserID    string
	PeerID    string
	MessageID string
	At        time.Time
	Detail    string
}

// Sink consumes audit events. Implementations must not block.
type Sink interface {
	Record(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// LogSink writes one line per event to a logger.
type LogSink struct {
	log *logging.Logger
}

func NewLogSink(l *logging.Logger) *LogSink {
	return &LogSink{log: l}
}

func (s *LogSink) Record(ev Event) {
	s.log.Infof("%s user=%q peer=%q msg=%q detail=%q", ev.Kind, ev.UserID, ev.PeerID, ev.MessageID, ev.Detail)
}

// ChannelSink buffers events on a channel for an external consumer. When the
// buffer is full new events are dropped rather than blocking the caller.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Record(ev Event) {
	select {
	case s.ch <- ev:
	default:
	}
}

// Events returns the channel events are delivered on.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

var (
	_ Sink = NopSink{}
	_ Sink = (*LogSink)(nil)
	_ Sink = (*ChannelSink)(nil)
)
