package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2e_station/internal/model"
	"e2e_station/internal/protocol/sealer"
	"e2e_station/internal/repository/identity"
	"e2e_station/internal/service/filter"
	"e2e_station/internal/service/session"
	"e2e_station/internal/service/storage"
)

const (
	stationID model.ID = "gsp@station"
	bob       model.ID = "bob@5c2d"
)

type (
	stubIdentity struct {
		verifyErr  error
		decryptErr error
		content    *model.Content
	}

	stubDispatcher struct {
		delivered []*model.Envelope
	}

	stubLists struct {
		lists   map[storage.ListKind][]model.ID
		blocked bool
	}

	stubTokens struct {
		tokens map[model.ID]string
	}

	stubGuests struct {
		added []model.ID
	}

	stubNames struct{}
)

func (s *stubIdentity) ID() model.ID { return stationID }

func (s *stubIdentity) Verify(context.Context, *model.Envelope) error { return s.verifyErr }

func (s *stubIdentity) Decrypt(*model.Envelope) (*model.Content, error) {
	return s.content, s.decryptErr
}

func (d *stubDispatcher) Deliver(_ context.Context, env *model.Envelope) bool {
	d.delivered = append(d.delivered, env)
	return true
}

func (l *stubLists) SaveList(_ context.Context, kind storage.ListKind, _ model.ID, ids []model.ID) error {
	if l.lists == nil {
		l.lists = make(map[storage.ListKind][]model.ID)
	}
	l.lists[kind] = ids
	return nil
}

func (l *stubLists) List(_ context.Context, kind storage.ListKind, _ model.ID) ([]model.ID, error) {
	return l.lists[kind], nil
}

func (l *stubLists) IsBlocked(context.Context, model.ID, model.ID, model.ID) (bool, error) {
	return l.blocked, nil
}

func (t *stubTokens) SaveDeviceToken(_ context.Context, id model.ID, token string) error {
	if t.tokens == nil {
		t.tokens = make(map[model.ID]string)
	}
	t.tokens[id] = token
	return nil
}

func (g *stubGuests) AddGuest(id model.ID) { g.added = append(g.added, id) }

func (stubNames) Name(_ context.Context, id model.ID) string { return id.Name() }

type fixture struct {
	identity   *stubIdentity
	registry   *session.Registry
	dispatcher *stubDispatcher
	directory  *identity.MemoryRepo
	lists      *stubLists
	tokens     *stubTokens
	guests     *stubGuests
	sess       *session.Session
	proc       *Processor
	alice      *model.Meta
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keys, err := sealer.NewKeys()
	require.NoError(t, err)

	f := &fixture{
		identity:   &stubIdentity{},
		registry:   session.NewRegistry(),
		dispatcher: &stubDispatcher{},
		directory:  identity.NewMemoryRepo(),
		lists:      &stubLists{},
		tokens:     &stubTokens{},
		guests:     &stubGuests{},
		sess:       session.New(nil),
		alice:      keys.Meta("alice", model.EntityPerson),
	}
	f.proc = NewProcessor(f.sess, Options{
		Station:    f.identity,
		Registry:   f.registry,
		Filter:     filter.NewFilter(f.lists, stubNames{}),
		Dispatcher: f.dispatcher,
		Directory:  f.directory,
		Lists:      f.lists,
		Tokens:     f.tokens,
		Guests:     f.guests,
	})
	return f
}

// command runs content as a station command from alice.
func (f *fixture) command(content *model.Content) *model.Content {
	f.identity.content = content
	env := &model.Envelope{Sender: f.alice.ID(), Receiver: stationID, Type: content.Type}
	return f.proc.Process(context.Background(), env)
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	challenge := f.command(model.NewHandshake(""))
	require.Equal(t, model.HandshakeAgain, challenge.Message)
	res := f.command(model.NewHandshake(challenge.Session))
	require.Equal(t, model.HandshakeSuccess, res.Message)
}

func TestProcess_SignatureError(t *testing.T) {
	f := newFixture(t)
	f.identity.verifyErr = sealer.ErrInvalidSignature

	env := &model.Envelope{Sender: f.alice.ID(), Receiver: bob, Signature: []byte{1, 2, 3}}
	res := f.proc.Process(context.Background(), env)

	require.NotNil(t, res)
	assert.Equal(t, model.ContentText, res.Type)
	assert.Equal(t, "Signature error", res.Text)
	assert.Equal(t, []byte{1, 2, 3}, res.Signature)
	assert.Empty(t, f.dispatcher.delivered)
	assert.Empty(t, f.registry.Search(f.alice.ID()))
}

func TestProcess_DecryptError(t *testing.T) {
	f := newFixture(t)
	f.identity.decryptErr = errors.New("bad ciphertext")

	res := f.proc.Process(context.Background(), &model.Envelope{Sender: f.alice.ID(), Receiver: stationID})
	require.NotNil(t, res)
	assert.Equal(t, model.ContentText, res.Type)
}

func TestProcess_DialogEcho(t *testing.T) {
	f := newFixture(t)
	text := model.NewText("hello station")
	assert.Same(t, text, f.command(text))
}

func TestHandshake(t *testing.T) {
	f := newFixture(t)

	challenge := f.command(model.NewHandshake(""))
	require.NotNil(t, challenge)
	assert.Equal(t, model.CommandHandshake, challenge.Kind())
	assert.Equal(t, model.HandshakeAgain, challenge.Message)
	assert.Equal(t, f.sess.Key(), challenge.Session)
	assert.False(t, f.sess.IsValid())
	assert.Equal(t, []*session.Session{f.sess}, f.registry.Search(f.alice.ID()))

	wrong := f.command(model.NewHandshake("not-the-key"))
	assert.Equal(t, model.HandshakeAgain, wrong.Message)
	assert.Equal(t, challenge.Session, wrong.Session)
	assert.False(t, f.sess.IsValid())
	assert.Empty(t, f.guests.added)

	res := f.command(model.NewHandshake(challenge.Session))
	assert.Equal(t, model.HandshakeSuccess, res.Message)
	assert.True(t, f.sess.IsValid())
	assert.True(t, f.sess.IsActive())
	assert.Equal(t, []model.ID{f.alice.ID()}, f.guests.added)
}

func TestPeerMessage_RequiresLogin(t *testing.T) {
	f := newFixture(t)
	env := &model.Envelope{Sender: f.alice.ID(), Receiver: bob, Type: model.ContentText}

	res := f.proc.Process(context.Background(), env)
	require.NotNil(t, res)
	assert.Equal(t, model.CommandHandshake, res.Kind())
	assert.Equal(t, model.HandshakeAgain, res.Message)
	assert.Empty(t, f.dispatcher.delivered)
}

func TestPeerMessage_Receipt(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	env := &model.Envelope{
		Sender:    f.alice.ID(),
		Receiver:  bob,
		Group:     "team@7a4b",
		Type:      model.ContentText,
		Time:      1700000000,
		Signature: []byte{9, 9},
	}
	res := f.proc.Process(context.Background(), env)

	require.Len(t, f.dispatcher.delivered, 1)
	assert.Same(t, env, f.dispatcher.delivered[0])
	require.NotNil(t, res)
	assert.Equal(t, model.CommandReceipt, res.Kind())
	assert.Equal(t, "Message delivering", res.Message)
	assert.Equal(t, f.alice.ID(), res.Sender)
	assert.Equal(t, bob, res.Receiver)
	assert.Equal(t, model.ID("team@7a4b"), res.Group)
	assert.EqualValues(t, 1700000000, res.Time)
	assert.Equal(t, []byte{9, 9}, res.Signature)

	env.Group = bob
	res = f.proc.Process(context.Background(), env)
	assert.Empty(t, res.Group)
}

func TestPeerMessage_Blocked(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.lists.blocked = true

	for _, env := range []*model.Envelope{
		{Sender: f.alice.ID(), Receiver: bob, Type: model.ContentText},
		{Sender: f.alice.ID(), Receiver: bob, Type: model.ContentForward},
		{Sender: f.alice.ID(), Receiver: model.Everyone, Type: model.ContentText},
	} {
		res := f.proc.Process(context.Background(), env)
		require.NotNil(t, res)
		assert.Equal(t, model.ContentText, res.Type)
		assert.Contains(t, res.Text, "Message is blocked by")
	}
	assert.Empty(t, f.dispatcher.delivered)
}

func TestMetaCommand(t *testing.T) {
	f := newFixture(t)
	id := f.alice.ID()

	query := model.NewCommand("meta")
	query.ID = id
	res := f.command(query)
	assert.Equal(t, fmt.Sprintf("Sorry, meta for %s not found.", id), res.Text)

	upload := model.NewCommand("meta")
	upload.ID = "alice@wrong"
	upload.Meta = f.alice
	res = f.command(upload)
	assert.Equal(t, "Meta not match alice@wrong!", res.Text)

	upload.ID = id
	res = f.command(upload)
	assert.Equal(t, model.CommandReceipt, res.Kind())
	assert.Equal(t, fmt.Sprintf("Meta for %s received!", id), res.Message)

	res = f.command(query)
	assert.Equal(t, model.CommandMeta, res.Kind())
	assert.Equal(t, id, res.ID)
	assert.Equal(t, f.alice, res.Meta)
}

func TestProfileCommand(t *testing.T) {
	f := newFixture(t)
	keys, err := sealer.NewKeys()
	require.NoError(t, err)
	meta := keys.Meta("carol", model.EntityPerson)
	id := meta.ID()
	ok, err := f.directory.SaveMeta(context.Background(), id, meta)
	require.NoError(t, err)
	require.True(t, ok)

	query := model.NewCommand("profile")
	query.ID = id
	assert.Equal(t, fmt.Sprintf("Sorry, profile for %s not found.", id), f.command(query).Text)

	data := `{"name":"Carol"}`
	upload := model.NewCommand("profile")
	upload.ID = id
	upload.Profile = &model.Profile{Data: data, Signature: []byte("forged")}
	assert.Equal(t, fmt.Sprintf("Profile signature not match %s!", id), f.command(upload).Text)

	env := &model.Envelope{}
	sealer.SealPlain(env, []byte(data), keys)
	upload.Profile = &model.Profile{Data: data, Signature: env.Signature}
	res := f.command(upload)
	assert.Equal(t, fmt.Sprintf("Profile of %s received!", id), res.Message)

	res = f.command(query)
	assert.Equal(t, model.CommandProfile, res.Kind())
	require.NotNil(t, res.Profile)
	assert.Equal(t, "Carol", res.Profile.Name())
	assert.Equal(t, meta, res.Meta)
}

func TestUsersCommand(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		sess := session.New(nil)
		f.registry.Register(model.ID(fmt.Sprintf("user%d@x", i)), sess)
		require.True(t, sess.Verify(sess.Key()))
	}
	// still handshaking, not listed
	f.registry.Register("mallory@x", session.New(nil))

	res := f.command(model.NewCommand("users"))
	assert.Equal(t, model.CommandUsers, res.Kind())
	assert.Len(t, res.Users, DefaultMaxUsers)
	assert.NotContains(t, res.Users, model.ID("mallory@x"))
	assert.Equal(t, "20 user(s) connected", res.Message)
}

func TestSearchCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, seed := range []string{"alice", "alina", "bob"} {
		keys, err := sealer.NewKeys()
		require.NoError(t, err)
		meta := keys.Meta(seed, model.EntityPerson)
		_, err = f.directory.SaveMeta(ctx, meta.ID(), meta)
		require.NoError(t, err)
	}

	cmd := model.NewCommand("search")
	cmd.Keywords = "ali"
	res := f.command(cmd)
	assert.Equal(t, model.CommandSearch, res.Kind())
	assert.Equal(t, "2 user(s) found", res.Message)
	assert.Len(t, res.Users, 2)
	assert.Len(t, res.Results, 2)

	res = f.command(model.NewCommand("search"))
	assert.Equal(t, "0 user(s) found", res.Message)
}

func TestBroadcastCommand(t *testing.T) {
	f := newFixture(t)

	report := model.NewCommand("broadcast")
	report.Title = model.TitleReport
	report.State = model.StateBackground

	// not logged in yet
	res := f.command(report)
	assert.Equal(t, model.CommandHandshake, res.Kind())

	f.login(t)
	f.guests.added = nil

	res = f.command(report)
	assert.Equal(t, "Client state received", res.Message)
	assert.False(t, f.sess.IsActive())
	assert.Empty(t, f.guests.added)

	report.State = model.StateForeground
	f.command(report)
	assert.True(t, f.sess.IsActive())
	assert.Equal(t, []model.ID{f.alice.ID()}, f.guests.added)

	f.sess.SetActive(false)
	report.State = "sleeping"
	f.command(report)
	assert.True(t, f.sess.IsActive())

	apns := model.NewCommand("broadcast")
	apns.Title = model.TitleAPNs
	apns.DeviceToken = "token-1"
	res = f.command(apns)
	assert.Equal(t, "Token received", res.Message)
	assert.Equal(t, "token-1", f.tokens.tokens[f.alice.ID()])

	other := model.NewCommand("broadcast")
	other.Title = "weather"
	assert.Nil(t, f.command(other))
}

func TestListCommands(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	query := model.NewCommand("block")
	res := f.command(query)
	assert.Equal(t, model.CommandBlock, res.Kind())
	assert.Empty(t, res.List)

	save := model.NewCommand("block")
	save.List = []model.ID{bob}
	res = f.command(save)
	assert.Equal(t, model.CommandReceipt, res.Kind())
	assert.Equal(t, []model.ID{bob}, f.lists.lists[storage.BlockList])

	res = f.command(query)
	assert.Equal(t, []model.ID{bob}, res.List)

	mute := model.NewCommand("mute")
	mute.List = []model.ID{"team@7a4b"}
	f.command(mute)
	assert.Equal(t, []model.ID{"team@7a4b"}, f.lists.lists[storage.MuteList])
}

func TestUnknownCommandIgnored(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.command(model.NewCommand("teleport")))
	assert.Nil(t, f.command(model.NewReceipt("ok")))
}
