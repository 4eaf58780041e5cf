package domain

import (
	"encoding/hex"
	"fmt"
)

// ------------- X25519 -------------

// PublicKey is a Curve25519 public key.
type PublicKey [32]byte

// PrivateKey is a Curve25519 private key, clamped per RFC 7748.
type PrivateKey [32]byte

// SharedKey is a 32-byte symmetric key derived from an ECDH exchange.
type SharedKey [32]byte

func (k PublicKey) Slice() []byte  { return k[:] }
func (k PrivateKey) Slice() []byte { return k[:] }
func (k SharedKey) Slice() []byte  { return k[:] }

// Hex returns the lowercase hex encoding of the public key.
func (k PublicKey) Hex() string { return hex.EncodeToString(k[:]) }

// IsZero reports whether the key is all zeroes (unset).
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

func MustPublicKey(b []byte) PublicKey {
	if len(b) != 32 {
		panic(fmt.Errorf("X25519 public: want 32 bytes, got %d", len(b)))
	}
	var out PublicKey
	copy(out[:], b)
	return out
}

func MustPrivateKey(b []byte) PrivateKey {
	if len(b) != 32 {
		panic(fmt.Errorf("X25519 private: want 32 bytes, got %d", len(b)))
	}
	var out PrivateKey
	copy(out[:], b)
	return out
}

// ParsePublicKey decodes a 64-character hex string into a PublicKey.
func ParsePublicKey(s string) (PublicKey, error) {
	var out PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("public key: %w", err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("public key: want 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// KeyPair couples an X25519 public key with its private key.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// ------------- Ed25519 -------------

// SigningPublicKey is an Ed25519 verification key.
type SigningPublicKey [32]byte

// SigningPrivateKey is an Ed25519 signing key (ed25519.PrivateKey layout).
type SigningPrivateKey [64]byte

func (k SigningPublicKey) Slice() []byte  { return k[:] }
func (k SigningPrivateKey) Slice() []byte { return k[:] }

func MustSigningPublicKey(b []byte) SigningPublicKey {
	if len(b) != 32 {
		panic(fmt.Errorf("Ed25519 public: want 32 bytes, got %d", len(b)))
	}
	var out SigningPublicKey
	copy(out[:], b)
	return out
}

func MustSigningPrivateKey(b []byte) SigningPrivateKey {
	if len(b) != 64 {
		panic(fmt.Errorf("Ed25519 private: want 64 bytes, got %d", len(b)))
	}
	var out SigningPrivateKey
	copy(out[:], b)
	return out
}
