// Package sealer signs and encrypts envelope payloads.
//
// Data is encrypted with AES-GCM under a key derived (HKDF-SHA256) from an
// X25519 exchange between a fresh ephemeral key and the receiver's exchange
// key; the ephemeral public key travels in Envelope.Key. The signature is
// Ed25519 over Data, so relays can verify without decrypting.
package sealer

import (
	"errors"
	"fmt"

	"e2e_station/internal/cryptographic/dh"
	"e2e_station/internal/cryptographic/encryption"
	"e2e_station/internal/cryptographic/kdf"
	"e2e_station/internal/cryptographic/signature"
	"e2e_station/internal/model"
)

const sealLabel = "e2e_station/seal"

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNoExchangeKey    = errors.New("receiver has no exchange key")
)

// Seal encrypts plaintext for receiverExchange and signs the result,
// filling env.Data, env.Key and env.Signature.
func Seal(env *model.Envelope, plaintext []byte, sender *Keys, receiverExchange []byte) error {
	if len(receiverExchange) != dh.KeySize {
		return ErrNoExchangeKey
	}

	ephPriv, ephPub, err := dh.NewX25519KeyPair()
	if err != nil {
		return err
	}
	key, err := sharedKey(ephPriv, receiverExchange, ephPub[:])
	if err != nil {
		return err
	}

	data, err := encryption.AEADEncrypt(key, plaintext, env.AAD())
	if err != nil {
		return err
	}

	env.Data = data
	env.Key = ephPub[:]
	env.Signature = signature.ED25519Sign(sender.Sign, data)
	return nil
}

// SealPlain signs plaintext without encrypting it.
func SealPlain(env *model.Envelope, plaintext []byte, sender *Keys) {
	env.Data = plaintext
	env.Key = nil
	env.Signature = signature.ED25519Sign(sender.Sign, plaintext)
}

// Verify checks env.Signature against the sender's signing key.
func Verify(env *model.Envelope, signKey []byte) error {
	if !signature.ED25519Verify(signKey, env.Data, env.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Open returns the plaintext of env. Unsealed payloads (no Key) are
// returned as-is.
func Open(env *model.Envelope, receiver *Keys) ([]byte, error) {
	if len(env.Key) == 0 {
		return env.Data, nil
	}

	key, err := sharedKey(receiver.Exchange, env.Key, env.Key)
	if err != nil {
		return nil, err
	}
	plain, err := encryption.AEADDecrypt(key, env.Data, env.AAD())
	if err != nil {
		return nil, fmt.Errorf("open envelope from %s: %w", env.Sender, err)
	}
	return plain, nil
}

func sharedKey(priv [dh.KeySize]byte, pub, salt []byte) ([]byte, error) {
	secret, err := dh.X25519SharedSecret(priv, pub)
	if err != nil {
		return nil, err
	}
	return kdf.DeriveKey(secret, salt, sealLabel, 32)
}
