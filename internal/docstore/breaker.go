package docstore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker placed in front of a Store.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker open.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

var _ Store = (*Breaker)(nil)

// Breaker fails fast while the wrapped Store keeps erroring. ErrNotFound and
// ErrExists are domain outcomes and never count as failures.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Store, cfg BreakerConfig, lg *zap.Logger) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "docstore",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrExists) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) do(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(err, "document store unavailable")
	}
	return err
}

// Get implements Store.
func (b *Breaker) Get(ctx context.Context, collection, id string, dst any) error {
	return b.do(func() error { return b.next.Get(ctx, collection, id, dst) })
}

// Create implements Store.
func (b *Breaker) Create(ctx context.Context, collection string, doc any) (string, error) {
	var id string
	err := b.do(func() error {
		var err error
		id, err = b.next.Create(ctx, collection, doc)
		return err
	})
	return id, err
}

// Put implements Store.
func (b *Breaker) Put(ctx context.Context, collection, id string, doc any) error {
	return b.do(func() error { return b.next.Put(ctx, collection, id, doc) })
}

// Merge implements Store.
func (b *Breaker) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	return b.do(func() error { return b.next.Merge(ctx, collection, id, fields) })
}

// Delete implements Store.
func (b *Breaker) Delete(ctx context.Context, collection, id string) error {
	return b.do(func() error { return b.next.Delete(ctx, collection, id) })
}

// Find implements Store.
func (b *Breaker) Find(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	var out []Snapshot
	err := b.do(func() error {
		var err error
		out, err = b.next.Find(ctx, collection, q)
		return err
	})
	return out, err
}
