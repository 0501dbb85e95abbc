// Package push queues push notifications for offline users. A separate
// APNs sender consumes the outbox list; the station only records what to
// send, to which device tokens, and with which badge count.
package push

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/service/redis"
	"e2e_station/internal/utils/log"
)

const DefaultOutbox = "apns:outbox"

type (
	Notification struct {
		Identifier model.ID `json:"identifier"`
		Tokens     []string `json:"tokens"`
		Text       string   `json:"text"`
		Badge      int64    `json:"badge"`
	}

	Notifier struct {
		redisService *redis.RedisService
		outbox       string
	}
)

func NewNotifier(redisSvc *redis.RedisService, outbox string) *Notifier {
	if outbox == "" {
		outbox = DefaultOutbox
	}
	return &Notifier{
		redisService: redisSvc,
		outbox:       outbox,
	}
}

func tokenKey(id model.ID) string {
	return fmt.Sprintf("device:%s", id)
}

func badgeKey(id model.ID) string {
	return fmt.Sprintf("badge:%s", id)
}

func (n *Notifier) SaveDeviceToken(ctx context.Context, id model.ID, token string) error {
	return n.redisService.SAdd(ctx, tokenKey(id), token)
}

func (n *Notifier) DeviceTokens(ctx context.Context, id model.ID) ([]string, error) {
	return n.redisService.SMembers(ctx, tokenKey(id))
}

// Push queues text for every device of id. It is false when id has no
// device token or the outbox write fails.
func (n *Notifier) Push(ctx context.Context, id model.ID, text string) bool {
	tokens, err := n.DeviceTokens(ctx, id)
	if err != nil {
		log.Error("load device tokens failed", zap.String("identifier", id.String()), zap.Error(err))
		return false
	}
	if len(tokens) == 0 {
		log.Debug("no device token", zap.String("identifier", id.String()))
		return false
	}

	badge, err := n.redisService.Incr(ctx, badgeKey(id))
	if err != nil {
		log.Error("increase badge failed", zap.String("identifier", id.String()), zap.Error(err))
		return false
	}

	data, err := json.Marshal(&Notification{
		Identifier: id,
		Tokens:     tokens,
		Text:       text,
		Badge:      badge,
	})
	if err != nil {
		log.Error("marshal notification failed", zap.Error(err))
		return false
	}
	if err := n.redisService.RPush(ctx, n.outbox, data); err != nil {
		log.Error("queue notification failed", zap.String("identifier", id.String()), zap.Error(err))
		return false
	}
	return true
}

// ClearBadge resets the unread counter once a user's queue is drained.
func (n *Notifier) ClearBadge(ctx context.Context, id model.ID) error {
	return n.redisService.Del(ctx, badgeKey(id))
}
