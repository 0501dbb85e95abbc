package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2e_station/internal/model"
	"e2e_station/internal/service/redis"
)

func newRedis(t *testing.T) (*redis.RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return redis.NewRedis(rdb), mr
}

func envelope(sender, receiver model.ID, n int) *model.Envelope {
	return &model.Envelope{
		Sender:    sender,
		Receiver:  receiver,
		Type:      model.ContentText,
		Time:      int64(1700000000 + n),
		Data:      []byte{byte(n)},
		Signature: []byte{0xAA, byte(n)},
	}
}

func TestMessageQueue_StoreLoadRemove(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedis(t)
	q := NewMessageQueue(rs, 2)

	batch, err := q.LoadBatch(ctx, "bob@b")
	require.NoError(t, err)
	assert.Nil(t, batch)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Store(ctx, envelope("alice@a", "bob@b", i)))
	}

	batch, err = q.LoadBatch(ctx, "bob@b")
	require.NoError(t, err)
	require.Len(t, batch.Messages, 2)
	assert.Equal(t, int64(1700000000), batch.Messages[0].Time)
	assert.Equal(t, int64(1700000001), batch.Messages[1].Time)

	// loading again does not consume
	again, err := q.LoadBatch(ctx, "bob@b")
	require.NoError(t, err)
	assert.Equal(t, batch, again)

	require.NoError(t, q.RemoveBatch(ctx, batch, 1))
	pending, err := q.Pending(ctx, "bob@b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	batch, err = q.LoadBatch(ctx, "bob@b")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000001), batch.Messages[0].Time)
}

func TestMessageQueue_RemoveKeepsConcurrentStore(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedis(t)
	q := NewMessageQueue(rs, 10)

	require.NoError(t, q.Store(ctx, envelope("alice@a", "bob@b", 1)))
	batch, err := q.LoadBatch(ctx, "bob@b")
	require.NoError(t, err)

	// a new message arrives mid-drain
	require.NoError(t, q.Store(ctx, envelope("alice@a", "bob@b", 2)))
	require.NoError(t, q.RemoveBatch(ctx, batch, len(batch.Messages)))

	batch, err = q.LoadBatch(ctx, "bob@b")
	require.NoError(t, err)
	require.Len(t, batch.Messages, 1)
	assert.Equal(t, int64(1700000002), batch.Messages[0].Time)
}

func TestMessageQueue_RemoveClampsCount(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedis(t)
	q := NewMessageQueue(rs, 1)

	require.NoError(t, q.Store(ctx, envelope("alice@a", "bob@b", 1)))
	require.NoError(t, q.Store(ctx, envelope("alice@a", "bob@b", 2)))
	batch, err := q.LoadBatch(ctx, "bob@b")
	require.NoError(t, err)

	require.NoError(t, q.RemoveBatch(ctx, batch, 5))
	pending, err := q.Pending(ctx, "bob@b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	require.NoError(t, q.RemoveBatch(ctx, batch, 0))
	require.NoError(t, q.RemoveBatch(ctx, nil, 3))
}

func TestMessageQueue_Malformed(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedis(t)
	q := NewMessageQueue(rs, 10)

	_, err := mr.RPush(messageKey("bob@b"), "\xff\xff")
	require.NoError(t, err)

	_, err = q.LoadBatch(ctx, "bob@b")
	assert.ErrorIs(t, err, ErrMalformedBatch)
}

func TestLists(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedis(t)
	l := NewLists(rs)

	require.NoError(t, l.SaveList(ctx, BlockList, "bob@b", []model.ID{"mallory@m", "spam@everywhere"}))
	require.NoError(t, l.SaveList(ctx, MuteList, "bob@b", []model.ID{"chatty@g"}))

	blocked, err := l.IsBlocked(ctx, "mallory@m", "bob@b", "")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = l.IsBlocked(ctx, "alice@a", "bob@b", "")
	require.NoError(t, err)
	assert.False(t, blocked)

	muted, err := l.IsMuted(ctx, "bob@b", "alice@a", "chatty@g")
	require.NoError(t, err)
	assert.True(t, muted)

	muted, err = l.IsMuted(ctx, "carol@c", "alice@a", "chatty@g")
	require.NoError(t, err)
	assert.False(t, muted)

	ids, err := l.List(ctx, BlockList, "bob@b")
	require.NoError(t, err)
	assert.Equal(t, []model.ID{"mallory@m", "spam@everywhere"}, ids)

	require.NoError(t, l.SaveList(ctx, BlockList, "bob@b", nil))
	ids, err = l.List(ctx, BlockList, "bob@b")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
