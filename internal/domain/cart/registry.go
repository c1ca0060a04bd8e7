package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Snapshots persists cart contents between process restarts.
type Snapshots interface {
	// Load returns the saved entries for userID, or nil when none exist.
	Load(ctx context.Context, userID string) ([]Entry, error)
	// Save replaces the saved entries for userID. Saving an empty slice
	// removes the snapshot.
	Save(ctx context.Context, userID string, entries []Entry) error
}

const snapshotTimeout = 5 * time.Second

// Registry hands out one Store per shopper.
type Registry struct {
	snaps Snapshots
	lg    *zap.Logger

	mu    sync.Mutex
	carts map[string]*Store
}

// NewRegistry creates a Registry. A nil snaps keeps carts in memory only.
func NewRegistry(snaps Snapshots, lg *zap.Logger) *Registry {
	return &Registry{
		snaps: snaps,
		lg:    lg,
		carts: make(map[string]*Store),
	}
}

// Get returns the cart of userID, restoring it from the snapshot repository
// on first access.
//
// When the restore fails, Get returns an empty cart that is neither
// registered nor persisted, so the saved snapshot is left intact and the
// next call retries the restore.
func (r *Registry) Get(ctx context.Context, userID string) *Store {
	r.mu.Lock()
	s, ok := r.carts[userID]
	r.mu.Unlock()
	if ok {
		return s
	}
	if r.snaps == nil {
		return r.register(userID, New())
	}

	// The restore must not fail because the request that triggered it went away.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	entries, err := r.snaps.Load(loadCtx, userID)
	cancel()
	if err != nil {
		r.lg.Warn("Restore cart failed, serving unsaved cart",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return New()
	}

	s = New(entries...)
	s.Subscribe(r.persister(userID))
	return r.register(userID, s)
}

// register stores s unless a concurrent Get registered a cart first.
func (r *Registry) register(userID string, s *Store) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.carts[userID]; ok {
		return existing
	}
	r.carts[userID] = s
	return s
}

func (r *Registry) persister(userID string) Subscriber {
	return func(entries []Entry) {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if err := r.snaps.Save(ctx, userID, entries); err != nil {
			r.lg.Warn("Persist cart failed",
				zap.String("user_id", userID),
				zap.Int("entries", len(entries)),
				zap.Error(err),
			)
		}
	}
}
