package dh

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

const KeySize = curve25519.PointSize

// NewX25519KeyPair generates a fresh exchange key pair.
func NewX25519KeyPair() (priv, pub [KeySize]byte, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return priv, pub, fmt.Errorf("failed to generate private key: %w", err)
	}
	curve25519.ScalarBaseMult(&pub, &priv)
	return priv, pub, nil
}

func PublicKey(priv [KeySize]byte) [KeySize]byte {
	var pub [KeySize]byte
	curve25519.ScalarBaseMult(&pub, &priv)
	return pub
}

// X25519SharedSecret computes priv * pub. pub must be KeySize bytes.
func X25519SharedSecret(priv [KeySize]byte, pub []byte) ([]byte, error) {
	if len(pub) != KeySize {
		return nil, fmt.Errorf("invalid public key size %d", len(pub))
	}
	return curve25519.X25519(priv[:], pub)
}
