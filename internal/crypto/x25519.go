package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"confide/internal/domain"
)

// hkdfInfo domain-separates conversation keys from any other use of the
// same ECDH secret.
const hkdfInfo = "confide-v1 shared key"

// GenerateKeyPair returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateKeyPair() (domain.KeyPair, error) {
	var kp domain.KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return domain.KeyPair{}, fmt.Errorf("generate key pair: %w", err)
	}
	clamp(&kp.Private)
	pub, err := curve25519.X25519(kp.Private.Slice(), curve25519.Basepoint)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("generate key pair: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// DeriveSharedKey computes the X25519 shared secret between priv and the
// peer's public key and expands it into a 32-byte symmetric key with
// HKDF-SHA256. Both sides of a conversation agree: (A.Private, B.Public)
// and (B.Private, A.Public) yield the same key for all pairs.
func DeriveSharedKey(priv domain.PrivateKey, peerPub domain.PublicKey) (domain.SharedKey, error) {
	var key domain.SharedKey
	secret, err := curve25519.X25519(priv.Slice(), peerPub.Slice())
	if err != nil {
		return key, fmt.Errorf("derive shared key: %w", err)
	}
	r := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("derive shared key: %w", err)
	}
	return key, nil
}

// VerifyKeyPair reports whether kp.Public is the public key belonging to
// kp.Private. Used to validate an imported or restored key pair.
func VerifyKeyPair(kp domain.KeyPair) bool {
	pub, err := curve25519.X25519(kp.Private.Slice(), curve25519.Basepoint)
	if err != nil {
		return false
	}
	return hmac.Equal(pub, kp.Public.Slice())
}

func clamp(k *domain.PrivateKey) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
