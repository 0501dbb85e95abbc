package processor

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/service/storage"
	"e2e_station/internal/utils/log"
)

func (p *Processor) processCommand(ctx context.Context, sender model.ID, content *model.Content) *model.Content {
	switch content.Kind() {
	case model.CommandHandshake:
		return p.handshake(sender, content)
	case model.CommandMeta:
		return p.meta(ctx, content)
	case model.CommandProfile:
		return p.profile(ctx, content)
	case model.CommandUsers:
		return p.users()
	case model.CommandSearch:
		return p.search(ctx, content)
	case model.CommandBroadcast:
		return p.broadcast(ctx, sender, content)
	case model.CommandMute:
		return p.list(ctx, sender, storage.MuteList, content)
	case model.CommandBlock:
		return p.list(ctx, sender, storage.BlockList, content)
	case model.CommandReceipt:
		log.Debug("receipt from client", zap.String("sender", sender.String()), zap.String("message", content.Message))
		return nil
	}
	log.Info("unknown command", zap.String("sender", sender.String()), zap.String("command", content.Command))
	return nil
}

func (p *Processor) handshake(sender model.ID, content *model.Content) *model.Content {
	sess := p.currentSession(sender)
	if content.Session == "" || !sess.Verify(content.Session) {
		return model.HandshakeRetry(sess.Key())
	}

	log.Info("handshake success", zap.String("sender", sender.String()), zap.String("remote", sess.RemoteAddr()))
	p.opts.Guests.AddGuest(sender)
	return model.HandshakeSucceeded()
}

func (p *Processor) meta(ctx context.Context, content *model.Content) *model.Content {
	id := content.ID
	if content.Meta != nil {
		ok, err := p.opts.Directory.SaveMeta(ctx, id, content.Meta)
		if err != nil {
			log.Error("save meta failed", zap.String("id", id.String()), zap.Error(err))
			return model.NewText(fmt.Sprintf("Sorry, failed to save meta for %s.", id))
		}
		if !ok {
			return model.NewText(fmt.Sprintf("Meta not match %s!", id))
		}
		return model.NewReceipt(fmt.Sprintf("Meta for %s received!", id))
	}

	meta, err := p.opts.Directory.Meta(ctx, id)
	if err != nil {
		log.Error("load meta failed", zap.String("id", id.String()), zap.Error(err))
	}
	if meta == nil {
		return model.NewText(fmt.Sprintf("Sorry, meta for %s not found.", id))
	}
	res := model.NewCommand("meta")
	res.ID = id
	res.Meta = meta
	return res
}

func (p *Processor) profile(ctx context.Context, content *model.Content) *model.Content {
	id := content.ID
	if content.Profile != nil {
		profile := *content.Profile
		if profile.ID == "" {
			profile.ID = id
		}
		if profile.ID != id {
			return model.NewText(fmt.Sprintf("Profile signature not match %s!", id))
		}
		ok, err := p.opts.Directory.SaveProfile(ctx, &profile)
		if err != nil {
			log.Error("save profile failed", zap.String("id", id.String()), zap.Error(err))
			return model.NewText(fmt.Sprintf("Sorry, failed to save profile for %s.", id))
		}
		if !ok {
			return model.NewText(fmt.Sprintf("Profile signature not match %s!", id))
		}
		return model.NewReceipt(fmt.Sprintf("Profile of %s received!", id))
	}

	profile, err := p.opts.Directory.Profile(ctx, id)
	if err != nil {
		log.Error("load profile failed", zap.String("id", id.String()), zap.Error(err))
	}
	if profile == nil {
		return model.NewText(fmt.Sprintf("Sorry, profile for %s not found.", id))
	}
	res := model.NewCommand("profile")
	res.ID = id
	res.Profile = profile
	if meta, _ := p.opts.Directory.Meta(ctx, id); meta != nil {
		res.Meta = meta
	}
	return res
}

func (p *Processor) users() *model.Content {
	users := p.opts.Registry.RandomUsers(p.opts.MaxUsers)
	res := model.NewCommand("users")
	res.Message = fmt.Sprintf("%d user(s) connected", len(users))
	res.Users = users
	return res
}

func (p *Processor) search(ctx context.Context, content *model.Content) *model.Content {
	res := model.NewCommand("search")

	keywords := content.SearchKeywords()
	var results map[model.ID]*model.Meta
	if len(keywords) > 0 {
		var err error
		results, err = p.opts.Directory.Search(ctx, keywords, p.opts.SearchLimit)
		if err != nil {
			log.Error("search failed", zap.Strings("keywords", keywords), zap.Error(err))
			return model.NewText("Sorry, search failed.")
		}
	}

	users := make([]model.ID, 0, len(results))
	for id := range results {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	res.Keywords = content.Keywords
	res.Message = fmt.Sprintf("%d user(s) found", len(users))
	res.Users = users
	res.Results = results
	return res
}

func (p *Processor) broadcast(ctx context.Context, sender model.ID, content *model.Content) *model.Content {
	sess := p.currentSession(sender)
	if !sess.IsValid() {
		return model.HandshakeRetry(sess.Key())
	}

	switch content.Title {
	case model.TitleReport:
		switch content.State {
		case model.StateBackground:
			sess.SetActive(false)
		case model.StateForeground:
			sess.SetActive(true)
			p.opts.Guests.AddGuest(sender)
		default:
			log.Warn("unknown client state", zap.String("sender", sender.String()), zap.String("state", content.State))
			sess.SetActive(true)
		}
		return model.NewReceipt("Client state received")

	case model.TitleAPNs:
		if content.DeviceToken == "" {
			return model.NewText("Device token not found")
		}
		if err := p.opts.Tokens.SaveDeviceToken(ctx, sender, content.DeviceToken); err != nil {
			log.Error("save device token failed", zap.String("sender", sender.String()), zap.Error(err))
			return model.NewText("Sorry, failed to save device token.")
		}
		return model.NewReceipt("Token received")
	}

	log.Info("unknown broadcast title", zap.String("sender", sender.String()), zap.String("title", content.Title))
	return nil
}

func (p *Processor) list(ctx context.Context, sender model.ID, kind storage.ListKind, content *model.Content) *model.Content {
	sess := p.currentSession(sender)
	if !sess.IsValid() {
		return model.HandshakeRetry(sess.Key())
	}

	if content.List != nil {
		if err := p.opts.Lists.SaveList(ctx, kind, sender, content.List); err != nil {
			log.Error("save list failed", zap.String("owner", sender.String()), zap.String("kind", string(kind)), zap.Error(err))
			return model.NewText(fmt.Sprintf("Sorry, failed to save %s-list.", kind))
		}
		return model.NewReceipt(fmt.Sprintf("%s-list of %s received!", kind, sender))
	}

	ids, err := p.opts.Lists.List(ctx, kind, sender)
	if err != nil {
		log.Error("load list failed", zap.String("owner", sender.String()), zap.String("kind", string(kind)), zap.Error(err))
	}
	res := model.NewCommand(string(kind))
	res.List = ids
	return res
}
