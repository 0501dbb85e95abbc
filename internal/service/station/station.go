// Package station holds the relay's own identity: it verifies incoming
// envelopes, opens the ones addressed to it and seals its responses.
package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/protocol/sealer"
	"e2e_station/internal/repository/identity"
	"e2e_station/internal/utils/log"
)

var (
	ErrMetaNotFound  = errors.New("meta not found")
	ErrMetaMismatch  = errors.New("meta not match sender")
	ErrNotForStation = errors.New("envelope not addressed to station")
)

type Station struct {
	id        model.ID
	meta      *model.Meta
	keys      *sealer.Keys
	directory identity.Directory
}

func NewStation(seed string, keys *sealer.Keys, directory identity.Directory) *Station {
	meta := keys.Meta(seed, model.EntityStation)
	return &Station{
		id:        meta.ID(),
		meta:      meta,
		keys:      keys,
		directory: directory,
	}
}

func (s *Station) ID() model.ID {
	return s.id
}

func (s *Station) Meta() *model.Meta {
	return s.meta
}

// Publish stores the station's own meta in the directory so clients can
// fetch it.
func (s *Station) Publish(ctx context.Context) error {
	if _, err := s.directory.SaveMeta(ctx, s.id, s.meta); err != nil {
		return fmt.Errorf("publish station meta: %w", err)
	}
	return nil
}

// Verify checks the envelope signature against the sender's meta. A meta
// attached to the envelope is used (and saved) when it generates the
// sender's identifier.
func (s *Station) Verify(ctx context.Context, env *model.Envelope) error {
	meta := env.Meta
	if meta != nil {
		if !meta.Match(env.Sender) {
			return fmt.Errorf("%w: %s", ErrMetaMismatch, env.Sender)
		}
	} else {
		var err error
		meta, err = s.directory.Meta(ctx, env.Sender)
		if err != nil {
			return fmt.Errorf("load meta for %s: %w", env.Sender, err)
		}
		if meta == nil {
			return fmt.Errorf("%w: %s", ErrMetaNotFound, env.Sender)
		}
	}

	if err := sealer.Verify(env, meta.Key.Sign); err != nil {
		return err
	}

	if env.Meta != nil {
		if _, err := s.directory.SaveMeta(ctx, env.Sender, env.Meta); err != nil {
			log.Warn("save attached meta failed", zap.String("sender", env.Sender.String()), zap.Error(err))
		}
	}
	return nil
}

// Decrypt opens an envelope addressed to the station.
func (s *Station) Decrypt(env *model.Envelope) (*model.Content, error) {
	if env.Receiver != s.id {
		return nil, ErrNotForStation
	}

	plain, err := sealer.Open(env, s.keys)
	if err != nil {
		return nil, err
	}

	var content model.Content
	if err := json.Unmarshal(plain, &content); err != nil {
		return nil, fmt.Errorf("decode content from %s: %w", env.Sender, err)
	}
	return &content, nil
}

// Pack signs content for receiver, sealing it when the receiver's meta is
// known. The station meta rides along so the receiver can verify.
func (s *Station) Pack(ctx context.Context, content *model.Content, receiver model.ID) (*model.Envelope, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}

	env := &model.Envelope{
		Sender:   s.id,
		Receiver: receiver,
		Type:     content.Type,
		Time:     time.Now().Unix(),
		Meta:     s.meta,
	}

	meta, err := s.directory.Meta(ctx, receiver)
	if err != nil {
		log.Warn("load receiver meta failed, send unsealed", zap.String("receiver", receiver.String()), zap.Error(err))
	}
	if meta == nil || !meta.Valid() {
		sealer.SealPlain(env, data, s.keys)
		return env, nil
	}

	if err := sealer.Seal(env, data, s.keys, meta.Key.Exchange); err != nil {
		return nil, err
	}
	return env, nil
}
