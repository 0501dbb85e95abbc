package dispatcher

import (
	"context"

	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/service/session"
	"e2e_station/internal/utils/log"
)

type (
	SessionLister interface {
		All() []*session.Session
	}

	// LocalBroadcaster fans a broadcast out to every online session on this
	// station except the sender's own.
	LocalBroadcaster struct {
		sessions SessionLister
	}
)

func NewLocalBroadcaster(sessions SessionLister) *LocalBroadcaster {
	return &LocalBroadcaster{sessions: sessions}
}

func (b *LocalBroadcaster) Broadcast(_ context.Context, env *model.Envelope) bool {
	all := b.sessions.All()
	targets := make([]*session.Session, 0, len(all))
	for _, sess := range all {
		if sess.Identifier() == env.Sender {
			continue
		}
		targets = append(targets, sess)
	}

	success := session.PushAll(log.L(), targets, env)
	log.Info("broadcast message",
		zap.String("sender", env.Sender.String()),
		zap.String("destination", env.Destination().String()),
		zap.Int("success", success))
	return success > 0
}
