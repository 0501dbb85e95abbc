// Package dispatcher decides how each peer message is delivered: broadcast,
// live push, or offline queue with a push notification.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/service/session"
	"e2e_station/internal/utils/log"
)

type (
	SessionSearcher interface {
		Search(identifier model.ID) []*session.Session
	}

	MessageStore interface {
		Store(ctx context.Context, env *model.Envelope) error
	}

	AccessLists interface {
		IsBlocked(ctx context.Context, sender, receiver, group model.ID) (bool, error)
		IsMuted(ctx context.Context, receiver, sender, group model.ID) (bool, error)
	}

	NameResolver interface {
		Name(ctx context.Context, id model.ID) string
	}

	Notifier interface {
		Push(ctx context.Context, id model.ID, text string) bool
	}

	GuestTracker interface {
		AddGuest(id model.ID)
	}

	Broadcaster interface {
		Broadcast(ctx context.Context, env *model.Envelope) bool
	}

	Options struct {
		Sessions    SessionSearcher
		Store       MessageStore
		Lists       AccessLists
		Names       NameResolver
		Notifier    Notifier
		Guests      GuestTracker
		Broadcaster Broadcaster
		Neighbors   []string
	}

	Dispatcher struct {
		sessions    SessionSearcher
		store       MessageStore
		lists       AccessLists
		names       NameResolver
		notifier    Notifier
		guests      GuestTracker
		broadcaster Broadcaster
		neighbors   []string
	}
)

func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{
		sessions:    opts.Sessions,
		store:       opts.Store,
		lists:       opts.Lists,
		names:       opts.Names,
		notifier:    opts.Notifier,
		guests:      opts.Guests,
		broadcaster: opts.Broadcaster,
		neighbors:   opts.Neighbors,
	}
}

// Deliver routes env and reports whether it was handled. Branches are
// tried in order: broadcast, block-list, live sessions, offline store
// (plus guest registration), neighbors, mute-list, push notification.
func (d *Dispatcher) Deliver(ctx context.Context, env *model.Envelope) bool {
	if env.IsBroadcast() {
		return d.broadcast(ctx, env)
	}

	if d.blocked(ctx, env) {
		log.Info("this sender/group is blocked",
			zap.String("sender", env.Sender.String()),
			zap.String("receiver", env.Receiver.String()),
			zap.String("group", env.Group.String()))
		return false
	}

	receiver := env.Receiver
	sessions := d.sessions.Search(receiver)
	if len(sessions) > 0 {
		log.Debug("receiver is online, try to push message",
			zap.String("receiver", receiver.String()), zap.Int("sessions", len(sessions)))
		if success := session.PushAll(log.L(), sessions, env); success > 0 {
			log.Debug("message pushed", zap.String("receiver", receiver.String()), zap.Int("success", success))
			return true
		}
	}

	log.Info("receiver is offline, store message",
		zap.String("sender", env.Sender.String()), zap.String("receiver", receiver.String()))
	if err := d.store.Store(ctx, env); err != nil {
		// nothing is queued, so no guest and no notification pointing at it
		log.Error("store message failed", zap.String("receiver", receiver.String()), zap.Error(err))
		return false
	}
	d.guests.AddGuest(receiver)

	d.transmit(env)

	if d.muted(ctx, env) {
		log.Info("this sender/group is muted",
			zap.String("sender", env.Sender.String()),
			zap.String("receiver", receiver.String()))
		return true
	}

	return d.pushNotification(ctx, env)
}

func (d *Dispatcher) broadcast(ctx context.Context, env *model.Envelope) bool {
	if d.broadcaster == nil {
		log.Info("no broadcaster, drop broadcast message", zap.String("sender", env.Sender.String()))
		return false
	}
	return d.broadcaster.Broadcast(ctx, env)
}

// transmit forwards to neighbor stations. Station federation is not
// implemented, so this always fails.
func (d *Dispatcher) transmit(env *model.Envelope) bool {
	if len(d.neighbors) > 0 {
		log.Debug("transmitting to neighbors skipped",
			zap.Strings("neighbors", d.neighbors), zap.String("receiver", env.Receiver.String()))
	}
	return false
}

func (d *Dispatcher) blocked(ctx context.Context, env *model.Envelope) bool {
	ok, err := d.lists.IsBlocked(ctx, env.Sender, env.Receiver, env.Group)
	if err != nil {
		log.Error("check block-list failed", zap.String("receiver", env.Receiver.String()), zap.Error(err))
		return false
	}
	return ok
}

func (d *Dispatcher) muted(ctx context.Context, env *model.Envelope) bool {
	ok, err := d.lists.IsMuted(ctx, env.Receiver, env.Sender, env.Group)
	if err != nil {
		log.Error("check mute-list failed", zap.String("receiver", env.Receiver.String()), zap.Error(err))
		return false
	}
	return ok
}

// summary describes a message type for notifications; false for types
// that are not worth a notification.
func summary(t model.ContentType) (string, bool) {
	switch t {
	case model.ContentUnknown:
		return "a message", true
	case model.ContentText:
		return "a text message", true
	case model.ContentFile:
		return "a file", true
	case model.ContentImage:
		return "an image", true
	case model.ContentAudio:
		return "a voice message", true
	case model.ContentVideo:
		return "a video", true
	}
	return "", false
}

func (d *Dispatcher) pushNotification(ctx context.Context, env *model.Envelope) bool {
	something, ok := summary(env.Type)
	if !ok {
		log.Debug("ignore msg type", zap.Uint8("type", uint8(env.Type)))
		return false
	}

	fromName := d.names.Name(ctx, env.Sender)
	toName := d.names.Name(ctx, env.Receiver)
	text := fmt.Sprintf("Dear %s: %s sent you %s", toName, fromName, something)
	if env.Group != "" {
		text += fmt.Sprintf(" in group [%s]", d.names.Name(ctx, env.Group))
	}

	log.Info("push notification", zap.String("receiver", env.Receiver.String()), zap.String("text", text))
	return d.notifier.Push(ctx, env.Receiver, text)
}
