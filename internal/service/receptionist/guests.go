package receptionist

import (
	"sync"

	"e2e_station/internal/model"
)

// Guests is the worklist of identifiers that may have offline messages
// waiting. Insertion order is kept so drains are fair across ticks.
type Guests struct {
	mu    sync.Mutex
	order []model.ID
	set   map[model.ID]struct{}
}

func NewGuests() *Guests {
	return &Guests{set: make(map[model.ID]struct{})}
}

func (g *Guests) Add(id model.ID) {
	if id == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.set[id]; ok {
		return
	}
	g.set[id] = struct{}{}
	g.order = append(g.order, id)
}

func (g *Guests) Remove(id model.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.set[id]; !ok {
		return
	}
	delete(g.set, id)
	for i, v := range g.order {
		if v == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

func (g *Guests) Contains(id model.ID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.set[id]
	return ok
}

// Snapshot copies the worklist; callers iterate the copy while others
// keep adding.
func (g *Guests) Snapshot() []model.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.ID(nil), g.order...)
}

func (g *Guests) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}
