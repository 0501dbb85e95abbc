package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2e_station/internal/cryptographic/signature"
	"e2e_station/internal/model"
	"e2e_station/internal/protocol/sealer"
)

func newMeta(t *testing.T, seed string, et model.EntityType) (*sealer.Keys, *model.Meta) {
	t.Helper()
	keys, err := sealer.NewKeys()
	require.NoError(t, err)
	return keys, keys.Meta(seed, et)
}

func TestMemoryRepo_Meta(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	_, alice := newMeta(t, "alice", model.EntityPerson)
	_, other := newMeta(t, "alice", model.EntityPerson)

	ok, err := repo.SaveMeta(ctx, alice.ID(), alice)
	require.NoError(t, err)
	assert.True(t, ok)

	// mismatching meta is refused
	ok, err = repo.SaveMeta(ctx, alice.ID(), other)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Meta(ctx, alice.ID())
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	missing, err := repo.Meta(ctx, "nobody@x")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryRepo_Profile(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	keys, alice := newMeta(t, "alice", model.EntityPerson)

	data := `{"name":"Alice Liddell"}`
	profile := &model.Profile{ID: alice.ID(), Data: data, Signature: signature.ED25519Sign(keys.Sign, []byte(data))}

	// no meta yet
	ok, err := repo.SaveProfile(ctx, profile)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "alice", repo.Name(ctx, alice.ID()))

	_, err = repo.SaveMeta(ctx, alice.ID(), alice)
	require.NoError(t, err)

	forged := *profile
	forged.Data = `{"name":"Mallory"}`
	ok, err = repo.SaveProfile(ctx, &forged)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.SaveProfile(ctx, profile)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Alice Liddell", repo.Name(ctx, alice.ID()))
}

func TestMemoryRepo_Search(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	_, alice := newMeta(t, "alice", model.EntityPerson)
	_, bob := newMeta(t, "bob", model.EntityPerson)
	_, group := newMeta(t, "alice-fans", model.EntityGroup)
	_, robot := newMeta(t, "alice-bot", model.EntityType(0x40))

	for _, m := range []*model.Meta{alice, bob, group, robot} {
		_, err := repo.SaveMeta(ctx, m.ID(), m)
		require.NoError(t, err)
	}

	results, err := repo.Search(ctx, []string{"alice"}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Contains(t, results, alice.ID())
	assert.Contains(t, results, group.ID())

	results, err = repo.Search(ctx, []string{model.FormatNumber(bob.Number())}, 0)
	require.NoError(t, err)
	assert.Contains(t, results, bob.ID())

	results, err = repo.Search(ctx, []string{"alice", "bob"}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = repo.Search(ctx, []string{"alice", "bob"}, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = repo.Search(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
