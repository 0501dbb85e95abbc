package model

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_Parts(t *testing.T) {
	id := ID("moky@4DnqXWdTV8wuZgfqSCX9")
	assert.Equal(t, "moky", id.Name())
	assert.Equal(t, "4DnqXWdTV8wuZgfqSCX9", id.Address())
	assert.False(t, id.IsBroadcast())

	bare := ID("station")
	assert.Equal(t, "station", bare.Name())
	assert.Equal(t, "station", bare.Address())
}

func TestID_Broadcast(t *testing.T) {
	assert.True(t, Everyone.IsBroadcast())
	assert.True(t, Anyone.IsBroadcast())
	assert.True(t, ID("members@everywhere").IsBroadcast())
	assert.False(t, ID("everyone@somewhere").IsBroadcast())
}

func TestEnvelope_Broadcast(t *testing.T) {
	env := &Envelope{Sender: "a@x", Receiver: "b@y"}
	assert.False(t, env.IsBroadcast())
	assert.Equal(t, ID("b@y"), env.Destination())

	env.Group = Everyone
	assert.True(t, env.IsBroadcast())
	assert.Equal(t, Everyone, env.Destination())

	env = &Envelope{Sender: "a@x", Receiver: Everyone}
	assert.True(t, env.IsBroadcast())
}

func TestMeta_Match(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	meta := &Meta{Type: EntityPerson, Seed: "alice", Key: PublicKey{Sign: pub, Exchange: make([]byte, 32)}}
	id := meta.ID()

	assert.True(t, meta.Match(id))
	assert.Len(t, id.Address(), 2*addressSize)
	assert.False(t, meta.Match(NewID("bob", id.Address())))
	assert.False(t, meta.Match(NewID("alice", "0000")))

	broken := &Meta{Seed: "alice", Key: PublicKey{Sign: pub[:10]}}
	assert.False(t, broken.Match(id))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "000-000-0000", FormatNumber(0))
	assert.Equal(t, "429-496-7295", FormatNumber(4294967295))
	assert.Equal(t, "012-345-6789", FormatNumber(123456789))
}

func TestProfile_Name(t *testing.T) {
	p := &Profile{ID: "a@x", Data: `{"name":"Alice"}`}
	assert.Equal(t, "Alice", p.Name())

	assert.Equal(t, "", (&Profile{Data: "not json"}).Name())
	assert.Equal(t, "", (*Profile)(nil).Name())
}

func TestContent_SearchKeywords(t *testing.T) {
	c := &Content{Keywords: "alice  bob"}
	assert.Equal(t, []string{"alice", "bob"}, c.SearchKeywords())

	c = &Content{Keyword: "carol"}
	assert.Equal(t, []string{"carol"}, c.SearchKeywords())

	c = &Content{KW: "123"}
	assert.Equal(t, []string{"123"}, c.SearchKeywords())

	assert.Nil(t, (&Content{}).SearchKeywords())
}

func TestContent_Kind(t *testing.T) {
	assert.Equal(t, CommandHandshake, NewCommand("handshake").Kind())
	assert.Equal(t, CommandUnknown, NewCommand("teleport").Kind())
	assert.Equal(t, CommandUnknown, (&Content{Type: ContentText, Command: "meta"}).Kind())
}
