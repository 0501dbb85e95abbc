package session

import (
	"math/rand/v2"
	"sync"

	"e2e_station/internal/model"
)

// Registry maps identifiers to their live sessions, one per connected
// device. A session sits under at most one identifier at a time.
type Registry struct {
	mu       sync.RWMutex
	sessions map[model.ID]map[*Session]struct{}
	owners   map[*Session]model.ID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[model.ID]map[*Session]struct{}),
		owners:   make(map[*Session]model.ID),
	}
}

// Register files sess under identifier, moving it from any previous slot.
// Registering the same pair again is a no-op.
func (r *Registry) Register(identifier model.ID, sess *Session) {
	if identifier == "" || sess == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.owners[sess]; ok {
		if old == identifier {
			return
		}
		r.detach(old, sess)
	}

	set, ok := r.sessions[identifier]
	if !ok {
		set = make(map[*Session]struct{})
		r.sessions[identifier] = set
	}
	set[sess] = struct{}{}
	r.owners[sess] = identifier
	sess.bind(identifier)
}

// Remove drops sess from whatever slot holds it. Unknown sessions are ignored.
func (r *Registry) Remove(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identifier, ok := r.owners[sess]
	if !ok {
		return
	}
	r.detach(identifier, sess)
}

func (r *Registry) detach(identifier model.ID, sess *Session) {
	delete(r.owners, sess)
	set := r.sessions[identifier]
	delete(set, sess)
	if len(set) == 0 {
		delete(r.sessions, identifier)
	}
}

// Search returns a snapshot of identifier's sessions.
func (r *Registry) Search(identifier model.ID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[identifier]
	res := make([]*Session, 0, len(set))
	for sess := range set {
		res = append(res, sess)
	}
	return res
}

// All returns a snapshot of every registered session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*Session, 0, len(r.owners))
	for sess := range r.owners {
		res = append(res, sess)
	}
	return res
}

// RandomUsers returns up to maxCount distinct identifiers that have at
// least one session past the handshake.
func (r *Registry) RandomUsers(maxCount int) []model.ID {
	r.mu.RLock()
	ids := make([]model.ID, 0, len(r.sessions))
	for id, set := range r.sessions {
		for sess := range set {
			if sess.IsValid() {
				ids = append(ids, id)
				break
			}
		}
	}
	r.mu.RUnlock()

	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if maxCount >= 0 && len(ids) > maxCount {
		ids = ids[:maxCount]
	}
	return ids
}

// Count is the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
