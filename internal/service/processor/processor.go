// Package processor runs the protocol for a single connection: it checks
// every incoming envelope, answers commands addressed to the station and
// hands everything else to the dispatcher.
package processor

import (
	"context"

	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/repository/identity"
	"e2e_station/internal/service/session"
	"e2e_station/internal/service/storage"
	"e2e_station/internal/utils/log"
)

const (
	DefaultMaxUsers    = 20
	DefaultSearchLimit = 50
)

type (
	Identity interface {
		ID() model.ID
		Verify(ctx context.Context, env *model.Envelope) error
		Decrypt(env *model.Envelope) (*model.Content, error)
	}

	SessionRegistry interface {
		Register(identifier model.ID, sess *session.Session)
		RandomUsers(maxCount int) []model.ID
	}

	AccessFilter interface {
		CheckBroadcast(ctx context.Context, env *model.Envelope, sess *session.Session) *model.Content
		CheckDeliver(ctx context.Context, env *model.Envelope, sess *session.Session) *model.Content
		CheckForward(ctx context.Context, env *model.Envelope, sess *session.Session) *model.Content
	}

	Deliverer interface {
		Deliver(ctx context.Context, env *model.Envelope) bool
	}

	ListStore interface {
		SaveList(ctx context.Context, kind storage.ListKind, owner model.ID, ids []model.ID) error
		List(ctx context.Context, kind storage.ListKind, owner model.ID) ([]model.ID, error)
	}

	TokenStore interface {
		SaveDeviceToken(ctx context.Context, id model.ID, token string) error
	}

	GuestTracker interface {
		AddGuest(id model.ID)
	}

	// Options are the station-wide services every processor shares.
	Options struct {
		Station     Identity
		Registry    SessionRegistry
		Filter      AccessFilter
		Dispatcher  Deliverer
		Directory   identity.Directory
		Lists       ListStore
		Tokens      TokenStore
		Guests      GuestTracker
		MaxUsers    int
		SearchLimit int
	}

	Processor struct {
		session *session.Session
		opts    Options
	}
)

func NewProcessor(sess *session.Session, opts Options) *Processor {
	if opts.MaxUsers <= 0 {
		opts.MaxUsers = DefaultMaxUsers
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	return &Processor{session: sess, opts: opts}
}

func (p *Processor) Session() *session.Session {
	return p.session
}

// Process handles one envelope from the connection. A nil result means
// nothing is sent back.
func (p *Processor) Process(ctx context.Context, env *model.Envelope) *model.Content {
	if err := p.opts.Station.Verify(ctx, env); err != nil {
		log.Warn("verify envelope failed", zap.String("sender", env.Sender.String()), zap.Error(err))
		res := model.NewText("Signature error")
		res.Signature = env.Signature
		return res
	}

	if env.Receiver == p.opts.Station.ID() {
		return p.processStationMessage(ctx, env)
	}
	return p.processPeerMessage(ctx, env)
}

// currentSession binds the connection's session to identifier.
func (p *Processor) currentSession(identifier model.ID) *session.Session {
	p.opts.Registry.Register(identifier, p.session)
	return p.session
}

func (p *Processor) processStationMessage(ctx context.Context, env *model.Envelope) *model.Content {
	content, err := p.opts.Station.Decrypt(env)
	if err != nil {
		log.Warn("decrypt station message failed", zap.String("sender", env.Sender.String()), zap.Error(err))
		return model.NewText("Failed to decrypt message")
	}

	if content.Type == model.ContentCommand {
		return p.processCommand(ctx, env.Sender, content)
	}

	log.Debug("dialog message", zap.String("sender", env.Sender.String()), zap.Uint8("type", uint8(content.Type)))
	return content
}

func (p *Processor) processPeerMessage(ctx context.Context, env *model.Envelope) *model.Content {
	sess := p.currentSession(env.Sender)

	var res *model.Content
	switch {
	case env.IsBroadcast():
		res = p.opts.Filter.CheckBroadcast(ctx, env, sess)
	case env.Type == model.ContentForward:
		res = p.opts.Filter.CheckForward(ctx, env, sess)
	default:
		res = p.opts.Filter.CheckDeliver(ctx, env, sess)
	}
	if res != nil {
		return res
	}

	if !p.opts.Dispatcher.Deliver(ctx, env) {
		log.Debug("message not delivered yet",
			zap.String("sender", env.Sender.String()), zap.String("receiver", env.Receiver.String()))
	}
	return deliveringReceipt(env)
}

func deliveringReceipt(env *model.Envelope) *model.Content {
	res := model.NewReceipt("Message delivering")
	res.Sender = env.Sender
	res.Receiver = env.Receiver
	res.Time = env.Time
	res.Signature = env.Signature
	if env.Group != "" && env.Group != env.Receiver {
		res.Group = env.Group
	}
	return res
}
