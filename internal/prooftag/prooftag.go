package prooftag

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"confide/internal/domain"
)

// proofVersion is mixed into every tag so format revisions invalidate old
// tags.
const proofVersion = "1.0"

// DefaultFreshnessWindow bounds how far a message timestamp may drift from
// the local clock in either direction.
const DefaultFreshnessWindow = 5 * time.Minute

// ErrProofInvalid is returned when a message's integrity tag fails its
// format check.
var ErrProofInvalid = errors.New("proof failed format check")

// ValidationError reports the first metadata field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid metadata: %s: %s", e.Field, e.Reason)
}

// Generator builds integrity tags and validates message metadata.
type Generator struct {
	clk    clock.Clock
	window time.Duration
}

// New constructs a Generator. A nil clock falls back to the wall clock and
// a non-positive window falls back to DefaultFreshnessWindow.
func New(clk clock.Clock, window time.Duration) *Generator {
	if clk == nil {
		clk = clock.New()
	}
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &Generator{clk: clk, window: window}
}

// Generate computes the integrity tag for content bound to md.
//
// The tag is keyed by a fresh 32-byte random nonce that is discarded after
// generation, so the tag detects mutation but cannot be recomputed by
// anyone, including the sender.
func (g *Generator) Generate(content []byte, md domain.MessageMetadata) (domain.Proof, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return domain.Proof{}, fmt.Errorf("proof nonce: %w", err)
	}

	mac := hmac.New(sha256.New, nonce[:])
	mac.Write(proofInput(content, md))
	sig := mac.Sum(nil)

	// The second MAC commits to the nonce under the first, filling the
	// record's PublicKey slot without publishing key material.
	keyTag := hmac.New(sha256.New, sig)
	keyTag.Write(nonce[:])

	return domain.Proof{
		Signature: hex.EncodeToString(sig),
		PublicKey: hex.EncodeToString(keyTag.Sum(nil)),
		Timestamp: g.clk.Now().UnixMilli(),
	}, nil
}

// Verify reports whether signature is shaped like a tag produced by
// Generate: a hex string of at least 64 characters. This is a format check
// only; a true result says nothing about who produced the tag.
func Verify(signature string) bool {
	if len(signature) < 64 {
		return false
	}
	_, err := hex.DecodeString(signature)
	return err == nil
}

// ValidateMetadata checks md for required fields, enum membership, and
// timestamp freshness. It returns the first failure as a *ValidationError
// and does not aggregate.
func (g *Generator) ValidateMetadata(md domain.MessageMetadata) error {
	if md.SenderID == "" {
		return &ValidationError{Field: "sender_id", Reason: "required"}
	}
	if md.RecipientID == "" {
		return &ValidationError{Field: "recipient_id", Reason: "required"}
	}
	if md.ThreadID == "" {
		return &ValidationError{Field: "thread_id", Reason: "required"}
	}
	if md.Timestamp == 0 {
		return &ValidationError{Field: "timestamp", Reason: "required"}
	}
	if !md.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown message type %q", md.Type)}
	}
	if !md.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown message status %q", md.Status)}
	}

	drift := g.clk.Now().Sub(time.UnixMilli(md.Timestamp))
	if drift > g.window {
		return &ValidationError{Field: "timestamp", Reason: "older than freshness window"}
	}
	if drift < -g.window {
		return &ValidationError{Field: "timestamp", Reason: "ahead of freshness window"}
	}
	return nil
}

func proofInput(content []byte, md domain.MessageMetadata) []byte {
	var b bytes.Buffer
	b.Write(content)
	b.WriteString(md.SenderID)
	b.WriteString(md.RecipientID)
	b.WriteString(md.ThreadID)
	b.WriteString(strconv.FormatInt(md.Timestamp, 10))
	b.WriteString(proofVersion)
	return b.Bytes()
}
