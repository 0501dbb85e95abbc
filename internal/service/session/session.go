package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"e2e_station/internal/model"
)

type (
	// Conn is the transport side of a session. The connection owns its own
	// lifetime; a Session only borrows it to push bytes out.
	Conn interface {
		PushMessage(env *model.Envelope) bool
		RemoteAddr() string
	}

	// Session is the authentication and presence state of one connection.
	Session struct {
		conn Conn

		mu         sync.RWMutex
		identifier model.ID
		key        string
		valid      bool
		active     bool
	}
)

func newSessionKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// New creates the session for a freshly accepted connection. It has no
// identifier yet and is neither valid nor registered.
func New(conn Conn) *Session {
	return &Session{
		conn:   conn,
		key:    newSessionKey(),
		active: true,
	}
}

func (s *Session) Identifier() model.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identifier
}

func (s *Session) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

func (s *Session) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid
}

func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Online reports whether pushes should be attempted on this session.
func (s *Session) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid && s.active
}

// Verify marks the session valid and active when key matches the issued
// session key. A mismatch changes nothing.
func (s *Session) Verify(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" || key != s.key {
		return false
	}
	s.valid = true
	s.active = true
	return true
}

func (s *Session) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// bind attaches the session to identifier. Switching to a different
// identifier issues a new key and drops validity.
func (s *Session) bind(identifier model.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identifier == identifier {
		return
	}
	if s.identifier != "" {
		s.key = newSessionKey()
		s.valid = false
		s.active = true
	}
	s.identifier = identifier
}

// Push sends env over the session's connection.
func (s *Session) Push(env *model.Envelope) bool {
	if s.conn == nil {
		return false
	}
	return s.conn.PushMessage(env)
}

func (s *Session) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr()
}
