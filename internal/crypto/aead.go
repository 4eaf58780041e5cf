package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"confide/internal/domain"
)

// NonceSize is the AES-GCM nonce length in bytes.
const NonceSize = 12

// ErrDecryptionFailed is returned when an AEAD open fails: wrong key,
// tampered ciphertext, or malformed nonce.
var ErrDecryptionFailed = errors.New("decryption failed")

// Encrypt seals plaintext under key with AES-256-GCM using a fresh random
// nonce. The nonce is returned in the payload's IV field; it is never reused
// for the same key.
func Encrypt(plaintext []byte, key domain.SharedKey) (domain.EncryptedPayload, error) {
	aead, err := newGCM(key)
	if err != nil {
		return domain.EncryptedPayload{}, err
	}
	iv := make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return domain.EncryptedPayload{}, fmt.Errorf("encrypt: %w", err)
	}
	ct := aead.Seal(nil, iv, plaintext, nil)
	return domain.EncryptedPayload{Content: ct, IV: iv}, nil
}

// Decrypt opens payload with key. It returns ErrDecryptionFailed when the
// authentication tag does not verify or the payload is malformed; it never
// returns altered plaintext.
func Decrypt(payload domain.EncryptedPayload, key domain.SharedKey) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(payload.IV) != NonceSize {
		return nil, ErrDecryptionFailed
	}
	pt, err := aead.Open(nil, payload.IV, payload.Content, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return pt, nil
}

func newGCM(key domain.SharedKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key.Slice())
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return cipher.NewGCM(block)
}
