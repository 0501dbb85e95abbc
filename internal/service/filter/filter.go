// Package filter gates inbound messages before delivery.
package filter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/service/session"
	"e2e_station/internal/utils/log"
)

type (
	BlockChecker interface {
		IsBlocked(ctx context.Context, sender, receiver, group model.ID) (bool, error)
	}

	NameResolver interface {
		Name(ctx context.Context, id model.ID) string
	}

	Filter struct {
		blocks BlockChecker
		names  NameResolver
	}
)

func NewFilter(blocks BlockChecker, names NameResolver) *Filter {
	return &Filter{
		blocks: blocks,
		names:  names,
	}
}

// CheckBroadcast, CheckDeliver and CheckForward return nil when the
// message may proceed, or the content to answer the sender with instead.
func (f *Filter) CheckBroadcast(ctx context.Context, env *model.Envelope, sess *session.Session) *model.Content {
	return f.check(ctx, env, sess)
}

func (f *Filter) CheckDeliver(ctx context.Context, env *model.Envelope, sess *session.Session) *model.Content {
	return f.check(ctx, env, sess)
}

func (f *Filter) CheckForward(ctx context.Context, env *model.Envelope, sess *session.Session) *model.Content {
	return f.check(ctx, env, sess)
}

func (f *Filter) check(ctx context.Context, env *model.Envelope, sess *session.Session) *model.Content {
	if res := f.checkLogin(sess); res != nil {
		return res
	}
	return f.checkBlocked(ctx, env)
}

func (f *Filter) checkLogin(sess *session.Session) *model.Content {
	if sess == nil {
		return model.HandshakeRetry("")
	}
	if !sess.IsValid() {
		return model.HandshakeRetry(sess.Key())
	}
	return nil
}

func (f *Filter) checkBlocked(ctx context.Context, env *model.Envelope) *model.Content {
	blocked, err := f.blocks.IsBlocked(ctx, env.Sender, env.Receiver, env.Group)
	if err != nil {
		log.Error("check block-list failed", zap.String("receiver", env.Receiver.String()), zap.Error(err))
		return nil
	}
	if !blocked {
		return nil
	}

	nickname := f.names.Name(ctx, env.Receiver)
	var res *model.Content
	if env.Group == "" {
		res = model.NewText(fmt.Sprintf("Message is blocked by %s", nickname))
	} else {
		grpName := f.names.Name(ctx, env.Group)
		res = model.NewText(fmt.Sprintf("Message is blocked by %s in group %s", nickname, grpName))
		res.Group = env.Group
	}
	return res
}
