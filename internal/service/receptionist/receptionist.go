// Package receptionist drains offline queues once their owners come back.
package receptionist

import (
	"context"
	"time"

	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/service/session"
	"e2e_station/internal/service/storage"
	"e2e_station/internal/utils/log"
)

const DefaultInterval = time.Second

type (
	SessionSearcher interface {
		Search(identifier model.ID) []*session.Session
	}

	BatchStore interface {
		LoadBatch(ctx context.Context, receiver model.ID) (*storage.Batch, error)
		RemoveBatch(ctx context.Context, batch *storage.Batch, count int) error
	}

	BadgeCleaner interface {
		ClearBadge(ctx context.Context, id model.ID) error
	}

	Receptionist struct {
		guests   *Guests
		sessions SessionSearcher
		store    BatchStore
		badges   BadgeCleaner
		interval time.Duration
		logger   *zap.Logger
	}
)

func NewReceptionist(sessions SessionSearcher, store BatchStore, badges BadgeCleaner, interval time.Duration, logger *zap.Logger) *Receptionist {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.L()
	}
	return &Receptionist{
		guests:   NewGuests(),
		sessions: sessions,
		store:    store,
		badges:   badges,
		interval: interval,
		logger:   logger.Named("receptionist"),
	}
}

// AddGuest asks for id's offline queue to be checked on the next tick.
func (r *Receptionist) AddGuest(id model.ID) {
	r.guests.Add(id)
}

func (r *Receptionist) Guests() []model.ID {
	return r.guests.Snapshot()
}

// Run scans guests once per interval until ctx is done.
func (r *Receptionist) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("receptionist started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("receptionist stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one pass over a snapshot of the guest worklist.
func (r *Receptionist) Tick(ctx context.Context) {
	for _, guest := range r.guests.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		if !r.visit(ctx, guest) {
			r.guests.Remove(guest)
		}
	}
}

// visit drains one guest and reports whether it should stay tracked.
func (r *Receptionist) visit(ctx context.Context, guest model.ID) bool {
	sessions := r.sessions.Search(guest)
	if len(sessions) == 0 {
		r.logger.Debug("guest has no session, untrack", zap.String("guest", guest.String()))
		return false
	}

	batch, err := r.store.LoadBatch(ctx, guest)
	if err != nil {
		r.logger.Error("load offline batch failed", zap.String("guest", guest.String()), zap.Error(err))
		return true
	}
	if batch == nil {
		r.logger.Debug("guest queue is empty, untrack", zap.String("guest", guest.String()))
		if err := r.badges.ClearBadge(ctx, guest); err != nil {
			r.logger.Warn("clear badge failed", zap.String("guest", guest.String()), zap.Error(err))
		}
		return false
	}
	total := len(batch.Messages)
	if total == 0 {
		r.logger.Warn("offline batch decoded empty", zap.String("guest", guest.String()))
		return true
	}

	delivered := 0
	for _, env := range batch.Messages {
		if session.PushAll(r.logger, sessions, env) == 0 {
			break
		}
		delivered++
	}

	if delivered > 0 {
		if err := r.store.RemoveBatch(ctx, batch, delivered); err != nil {
			r.logger.Error("remove delivered messages failed",
				zap.String("guest", guest.String()), zap.Int("delivered", delivered), zap.Error(err))
			return true
		}
	}

	r.logger.Info("guest drained",
		zap.String("guest", guest.String()), zap.Int("delivered", delivered), zap.Int("total", total))
	// the rest waits in storage for the next handshake or foreground report
	return delivered == total
}
