package domain

// MessageType classifies a message payload.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageFile  MessageType = "file"
	MessageImage MessageType = "image"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageImage:
		return true
	}
	return false
}

// MessageStatus tracks a message through its delivery lifecycle.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Valid reports whether s is a known message status.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// EncryptedPayload is a ciphertext together with the AEAD nonce that sealed
// it. It is transient; callers hand it straight to transport or storage.
type EncryptedPayload struct {
	Content []byte `json:"content"`
	IV      []byte `json:"iv"`
}

// Proof is an integrity tag bound to a message's ciphertext and metadata.
// It is keyed by a random nonce that is never published, so it detects
// accidental or in-transit mutation but proves nothing about authorship.
// It is not a digital signature. The PublicKey field is a second MAC over
// the nonce, not an asymmetric key.
type Proof struct {
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
	Timestamp int64  `json:"timestamp"` // epoch ms at generation
}

// MessageMetadata describes a message's routing and lifecycle fields.
// Timestamp is epoch milliseconds at the sender.
type MessageMetadata struct {
	SenderID    string        `json:"sender_id"`
	RecipientID string        `json:"recipient_id"`
	ThreadID    string        `json:"thread_id"`
	Timestamp   int64         `json:"timestamp"`
	Type        MessageType   `json:"type"`
	Status      MessageStatus `json:"status"`
}

// SecureMessage is one encrypted message ready for transport or persistence.
// Signature is an optional Ed25519 signature over the ciphertext and routing
// fields; it is empty unless the sender enabled signing.
type SecureMessage struct {
	ID               string          `json:"id"`
	EncryptedContent []byte          `json:"encrypted_content"`
	IV               []byte          `json:"iv"`
	Proof            Proof           `json:"proof"`
	Signature        []byte          `json:"signature,omitempty"`
	Metadata         MessageMetadata `json:"metadata"`
}

// Payload returns the message's ciphertext and nonce as an EncryptedPayload.
func (m SecureMessage) Payload() EncryptedPayload {
	return EncryptedPayload{Content: m.EncryptedContent, IV: m.IV}
}
