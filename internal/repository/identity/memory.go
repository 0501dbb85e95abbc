package identity

import (
	"context"
	"sort"
	"sync"

	"e2e_station/internal/model"
)

// MemoryRepo is a process-local Directory, used when no MongoDB is
// configured.
type MemoryRepo struct {
	mu       sync.RWMutex
	metas    map[model.ID]*model.Meta
	profiles map[model.ID]*model.Profile
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		metas:    make(map[model.ID]*model.Meta),
		profiles: make(map[model.ID]*model.Profile),
	}
}

func (r *MemoryRepo) SaveMeta(_ context.Context, id model.ID, meta *model.Meta) (bool, error) {
	if !meta.Match(id) {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metas[id]; !ok {
		m := *meta
		r.metas[id] = &m
	}
	return true, nil
}

func (r *MemoryRepo) Meta(_ context.Context, id model.ID) (*model.Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metas[id], nil
}

func (r *MemoryRepo) SaveProfile(ctx context.Context, profile *model.Profile) (bool, error) {
	meta, _ := r.Meta(ctx, profile.ID)
	if !verifyProfile(meta, profile) {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p := *profile
	r.profiles[profile.ID] = &p
	return true, nil
}

func (r *MemoryRepo) Profile(_ context.Context, id model.ID) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[id], nil
}

func (r *MemoryRepo) Search(_ context.Context, keywords []string, limit int) (map[model.ID]*model.Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]model.ID, 0, len(r.metas))
	for id := range r.metas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make(map[model.ID]*model.Meta)
	for _, kw := range keywords {
		for _, id := range ids {
			if limit > 0 && len(results) >= limit {
				return results, nil
			}
			meta := r.metas[id]
			if searchable(meta) && matches(id, meta, kw) {
				results[id] = meta
			}
		}
	}
	return results, nil
}

func (r *MemoryRepo) Name(ctx context.Context, id model.ID) string {
	profile, _ := r.Profile(ctx, id)
	return displayName(profile, id)
}

var _ Directory = (*MemoryRepo)(nil)
