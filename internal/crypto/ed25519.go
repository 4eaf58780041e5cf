package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"confide/internal/domain"
)

// GenerateSigningKeyPair returns a new Ed25519 signing key pair.
func GenerateSigningKeyPair() (priv domain.SigningPrivateKey, pub domain.SigningPublicKey, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// Sign signs msg with priv and returns the signature.
func Sign(priv domain.SigningPrivateKey, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
}

// VerifySignature verifies sig over msg with pub.
func VerifySignature(pub domain.SigningPublicKey, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}
