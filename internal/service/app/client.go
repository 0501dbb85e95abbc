package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/protocol/sealer"
	"e2e_station/internal/utils/log"
)

var ErrUnknownPeer = errors.New("peer meta not found")

type (
	EventKind int

	// Event is something the user should see.
	Event struct {
		Kind    EventKind
		From    model.ID
		Text    string
		Content *model.Content
	}

	// Client speaks the station protocol for one identity.
	Client struct {
		base    *url.URL
		keys    *sealer.Keys
		meta    *model.Meta
		station *model.Meta

		conn    *websocket.Conn
		writeMu sync.Mutex

		mu    sync.RWMutex
		metas map[model.ID]*model.Meta
	}
)

const (
	EventMessage EventKind = iota
	EventNotice
	EventLogin
)

func NewClient(stationURL string, keys *sealer.Keys, seed string) (*Client, error) {
	base, err := url.Parse(stationURL)
	if err != nil {
		return nil, fmt.Errorf("parse station url: %w", err)
	}
	return &Client{
		base:  base,
		keys:  keys,
		meta:  keys.Meta(seed, model.EntityPerson),
		metas: make(map[model.ID]*model.Meta),
	}, nil
}

func (c *Client) ID() model.ID {
	return c.meta.ID()
}

// Connect fetches the station meta, opens the websocket and starts the
// handshake. Listen must run to finish it.
func (c *Client) Connect(ctx context.Context) error {
	res, err := fetchMeta(ctx, c.base, "station")
	if err != nil {
		return fmt.Errorf("get station meta: %w", err)
	}
	if res == nil {
		return errors.New("station meta not found")
	}
	c.station = res.Meta

	conn, err := dialStation(ctx, c.base)
	if err != nil {
		return fmt.Errorf("dial station: %w", err)
	}
	c.conn = conn

	return c.Command(model.NewHandshake(""))
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Command sends content to the station.
func (c *Client) Command(content *model.Content) error {
	return c.send(c.station.ID(), c.station.Key.Exchange, content)
}

// SendText seals text for receiver.
func (c *Client) SendText(ctx context.Context, receiver model.ID, text string) error {
	meta, err := c.peerMeta(ctx, receiver)
	if err != nil {
		return err
	}
	return c.send(receiver, meta.Key.Exchange, model.NewText(text))
}

func (c *Client) send(receiver model.ID, exchange []byte, content *model.Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}

	env := &model.Envelope{
		Sender:   c.ID(),
		Receiver: receiver,
		Type:     content.Type,
		Time:     time.Now().Unix(),
		Meta:     c.meta,
	}
	if err := sealer.Seal(env, data, c.keys, exchange); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) peerMeta(ctx context.Context, id model.ID) (*model.Meta, error) {
	c.mu.RLock()
	meta, ok := c.metas[id]
	c.mu.RUnlock()
	if ok {
		return meta, nil
	}

	res, err := fetchMeta(ctx, c.base, id.String())
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}
	c.remember(res.ID, res.Meta)
	return res.Meta, nil
}

func (c *Client) remember(id model.ID, meta *model.Meta) {
	if !meta.Match(id) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metas[id] = meta
}

// Listen reads until the connection closes, answering handshake
// challenges and passing everything else to handle.
func (c *Client) Listen(handle func(Event)) error {
	for {
		var env model.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return err
		}

		ev, err := c.open(&env)
		if err != nil {
			log.Warn("drop incoming message", zap.String("sender", env.Sender.String()), zap.Error(err))
			continue
		}
		if ev != nil {
			handle(*ev)
		}
	}
}

func (c *Client) open(env *model.Envelope) (*Event, error) {
	if env.Meta != nil {
		c.remember(env.Sender, env.Meta)
	}

	c.mu.RLock()
	meta := c.metas[env.Sender]
	c.mu.RUnlock()
	if env.Sender == c.station.ID() {
		meta = c.station
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, env.Sender)
	}
	if err := sealer.Verify(env, meta.Key.Sign); err != nil {
		return nil, err
	}

	plain, err := sealer.Open(env, c.keys)
	if err != nil {
		return nil, err
	}
	var content model.Content
	if err := json.Unmarshal(plain, &content); err != nil {
		return nil, err
	}

	if env.Sender != c.station.ID() {
		return &Event{Kind: EventMessage, From: env.Sender, Text: content.Text, Content: &content}, nil
	}
	return c.stationEvent(&content)
}

func (c *Client) stationEvent(content *model.Content) (*Event, error) {
	ev := &Event{Kind: EventNotice, From: c.station.ID(), Content: content}

	switch content.Kind() {
	case model.CommandHandshake:
		if content.Message == model.HandshakeSuccess {
			ev.Kind = EventLogin
			ev.Text = "logged in"
			return ev, nil
		}
		// answer the challenge with the session key we were given
		if err := c.Command(model.NewHandshake(content.Session)); err != nil {
			return nil, err
		}
		return nil, nil
	case model.CommandMeta:
		c.remember(content.ID, content.Meta)
		ev.Text = fmt.Sprintf("meta of %s received", content.ID)
	case model.CommandUsers, model.CommandSearch:
		for id, meta := range content.Results {
			c.remember(id, meta)
		}
		ev.Text = content.Message
		for _, id := range content.Users {
			ev.Text += "\n  " + id.String()
		}
	case model.CommandReceipt:
		ev.Text = content.Message
	default:
		ev.Text = content.Text
		if ev.Text == "" {
			ev.Text = content.Message
		}
	}
	return ev, nil
}
