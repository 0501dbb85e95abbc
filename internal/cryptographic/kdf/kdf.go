package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF fills buffer from HKDF-SHA256(secret, salt, info).
func HKDF(secret, salt, info, buffer []byte) (int, error) {
	h := hkdf.New(sha256.New, secret, salt, info)
	return io.ReadFull(h, buffer)
}

// DeriveKey returns a size-byte key for the given context label.
func DeriveKey(secret, salt []byte, label string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := HKDF(secret, salt, []byte(label), key); err != nil {
		return nil, err
	}
	return key, nil
}
