package model

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

const addressSize = 20

type (
	PublicKey struct {
		Sign     []byte `json:"sign" bson:"sign"`         // Ed25519
		Exchange []byte `json:"exchange" bson:"exchange"` // X25519
	}

	// Meta binds an identifier to its public keys.
	Meta struct {
		Type EntityType `json:"type" bson:"type"`
		Seed string     `json:"seed" bson:"seed"`
		Key  PublicKey  `json:"key" bson:"key"`
	}

	// Profile carries signed, free-form JSON about an identifier.
	Profile struct {
		ID        ID     `json:"ID" bson:"identifier"`
		Data      string `json:"data" bson:"data"`
		Signature []byte `json:"signature" bson:"signature"`
	}
)

func (m *Meta) digest() [32]byte {
	return blake3.Sum256(m.Key.Sign)
}

func (m *Meta) Address() string {
	d := m.digest()
	return hex.EncodeToString(d[:addressSize])
}

// Number is the numeric handle users search by.
func (m *Meta) Number() uint32 {
	d := m.digest()
	return binary.BigEndian.Uint32(d[addressSize : addressSize+4])
}

func (m *Meta) ID() ID {
	return NewID(m.Seed, m.Address())
}

func (m *Meta) Valid() bool {
	return m != nil && len(m.Key.Sign) == ed25519.PublicKeySize && len(m.Key.Exchange) == 32
}

// Match reports whether the meta generates the identifier.
func (m *Meta) Match(id ID) bool {
	if !m.Valid() {
		return false
	}
	return id.Name() == m.Seed && id.Address() == m.Address()
}

// FormatNumber renders a search number as ddd-ddd-dddd.
func FormatNumber(n uint32) string {
	return fmt.Sprintf("%03d-%03d-%04d", n/10_000_000, n/10_000%1000, n%10_000)
}

// Name returns the "name" field of the profile data, if any.
func (p *Profile) Name() string {
	if p == nil || p.Data == "" {
		return ""
	}

	var fields struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(p.Data), &fields); err != nil {
		return ""
	}
	return fields.Name
}
