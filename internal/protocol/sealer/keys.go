package sealer

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"e2e_station/internal/cryptographic/dh"
	"e2e_station/internal/cryptographic/signature"
	"e2e_station/internal/model"
)

type (
	// Keys is the private half of an identity.
	Keys struct {
		Sign     ed25519.PrivateKey
		Exchange [dh.KeySize]byte
	}

	keyFile struct {
		Seed     string `json:"seed"`
		Sign     []byte `json:"sign"` // Ed25519 seed
		Exchange []byte `json:"exchange"`
	}
)

func NewKeys() (*Keys, error) {
	_, signPriv, err := signature.NewEd25519Keypair()
	if err != nil {
		return nil, err
	}
	exPriv, _, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}
	return &Keys{Sign: signPriv, Exchange: exPriv}, nil
}

// Meta is the public meta for these keys under seed.
func (k *Keys) Meta(seed string, t model.EntityType) *model.Meta {
	exPub := dh.PublicKey(k.Exchange)
	return &model.Meta{
		Type: t,
		Seed: seed,
		Key: model.PublicKey{
			Sign:     []byte(k.Sign.Public().(ed25519.PublicKey)),
			Exchange: exPub[:],
		},
	}
}

// LoadOrCreate reads a key file, generating and writing a new one (0600)
// when it does not exist yet. The stored seed wins over the argument.
func LoadOrCreate(path, seed string) (*Keys, string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		keys, err := NewKeys()
		if err != nil {
			return nil, "", err
		}
		if err := save(path, seed, keys); err != nil {
			return nil, "", err
		}
		return keys, seed, nil
	}
	if err != nil {
		return nil, "", err
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, "", fmt.Errorf("parse key file %s: %w", path, err)
	}
	if len(kf.Sign) != ed25519.SeedSize || len(kf.Exchange) != dh.KeySize {
		return nil, "", fmt.Errorf("key file %s: bad key sizes", path)
	}

	keys := &Keys{Sign: ed25519.NewKeyFromSeed(kf.Sign)}
	copy(keys.Exchange[:], kf.Exchange)
	if kf.Seed != "" {
		seed = kf.Seed
	}
	return keys, seed, nil
}

func save(path, seed string, keys *Keys) error {
	data, err := json.MarshalIndent(keyFile{
		Seed:     seed,
		Sign:     keys.Sign.Seed(),
		Exchange: keys.Exchange[:],
	}, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}
