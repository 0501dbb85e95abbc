package storage

import (
	"context"
	"errors"
	"fmt"

	"e2e_station/internal/codec"
	"e2e_station/internal/model"
	"e2e_station/internal/service/redis"
)

var ErrMalformedBatch = errors.New("malformed message batch")

type (
	// Batch is the oldest slice of one receiver's offline queue.
	Batch struct {
		Receiver model.ID
		Messages []*model.Envelope
	}

	// MessageQueue keeps undelivered envelopes in one Redis list per
	// receiver. Producers append at the tail; the drain trims the head,
	// so a concurrent Store is never lost by a RemoveBatch.
	MessageQueue struct {
		redisService *redis.RedisService
		batchSize    int64
	}
)

func NewMessageQueue(redisSvc *redis.RedisService, batchSize int) *MessageQueue {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &MessageQueue{
		redisService: redisSvc,
		batchSize:    int64(batchSize),
	}
}

func messageKey(receiver model.ID) string {
	return fmt.Sprintf("messages:%s", receiver)
}

// Store appends env to its receiver's queue.
func (q *MessageQueue) Store(ctx context.Context, env *model.Envelope) error {
	data, err := codec.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	return q.redisService.RPush(ctx, messageKey(env.Receiver), data)
}

// LoadBatch returns up to batchSize of the oldest queued envelopes, or nil
// when the queue is empty. It does not consume anything.
func (q *MessageQueue) LoadBatch(ctx context.Context, receiver model.ID) (*Batch, error) {
	vals, err := q.redisService.LRange(ctx, messageKey(receiver), 0, q.batchSize-1)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}

	batch := &Batch{
		Receiver: receiver,
		Messages: make([]*model.Envelope, 0, len(vals)),
	}
	for i, v := range vals {
		env, err := codec.DecodeEnvelope([]byte(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %s entry %d: %v", ErrMalformedBatch, receiver, i, err)
		}
		batch.Messages = append(batch.Messages, env)
	}
	return batch, nil
}

// RemoveBatch drops the first count messages of batch from the queue.
func (q *MessageQueue) RemoveBatch(ctx context.Context, batch *Batch, count int) error {
	if batch == nil || count <= 0 {
		return nil
	}
	if count > len(batch.Messages) {
		count = len(batch.Messages)
	}
	return q.redisService.LTrim(ctx, messageKey(batch.Receiver), int64(count), -1)
}

// Pending reports the queue length for receiver.
func (q *MessageQueue) Pending(ctx context.Context, receiver model.ID) (int64, error) {
	return q.redisService.LLen(ctx, messageKey(receiver))
}
