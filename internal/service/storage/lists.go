package storage

import (
	"context"
	"fmt"
	"sort"

	"e2e_station/internal/model"
	"e2e_station/internal/service/redis"
)

type ListKind string

const (
	BlockList ListKind = "block"
	MuteList  ListKind = "mute"
)

type (
	// Lists stores each user's block-list and mute-list as Redis sets of
	// user or group identifiers.
	Lists struct {
		redisService *redis.RedisService
	}
)

func NewLists(redisSvc *redis.RedisService) *Lists {
	return &Lists{redisService: redisSvc}
}

func listKey(kind ListKind, owner model.ID) string {
	return fmt.Sprintf("%s:%s", kind, owner)
}

// IsBlocked reports whether receiver has blocked sender, or the group the
// message was sent in.
func (l *Lists) IsBlocked(ctx context.Context, sender, receiver, group model.ID) (bool, error) {
	return l.contains(ctx, BlockList, receiver, sender, group)
}

// IsMuted reports whether receiver has muted sender or group.
func (l *Lists) IsMuted(ctx context.Context, receiver, sender, group model.ID) (bool, error) {
	return l.contains(ctx, MuteList, receiver, sender, group)
}

func (l *Lists) contains(ctx context.Context, kind ListKind, owner, sender, group model.ID) (bool, error) {
	key := listKey(kind, owner)
	ok, err := l.redisService.SIsMember(ctx, key, string(sender))
	if err != nil || ok || group == "" {
		return ok, err
	}
	return l.redisService.SIsMember(ctx, key, string(group))
}

// SaveList replaces owner's list.
func (l *Lists) SaveList(ctx context.Context, kind ListKind, owner model.ID, ids []model.ID) error {
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			members = append(members, string(id))
		}
	}
	return l.redisService.Replace(ctx, listKey(kind, owner), members...)
}

func (l *Lists) List(ctx context.Context, kind ListKind, owner model.ID) ([]model.ID, error) {
	vals, err := l.redisService.SMembers(ctx, listKey(kind, owner))
	if err != nil {
		return nil, err
	}
	sort.Strings(vals)

	ids := make([]model.ID, 0, len(vals))
	for _, v := range vals {
		ids = append(ids, model.ID(v))
	}
	return ids, nil
}
