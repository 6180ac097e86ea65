package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/use-agent/quotegrab/models"
	"golang.org/x/sync/semaphore"
)

// Limiter is a capacity-bounded admission gate. Waiters are admitted in
// arrival order, so no caller starves while the load is bounded.
type Limiter struct {
	capacity int
	sem      *semaphore.Weighted
	inFlight atomic.Int32
	peak     atomic.Int32
}

// NewLimiter creates a Limiter admitting at most capacity holders at once.
// A capacity below 1 is treated as 1.
func NewLimiter(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		capacity: capacity,
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Acquire blocks until a permit is free or ctx is done. The returned
// release func is idempotent: only its first call gives the permit back.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.inFlight.Add(-1)
			l.sem.Release(1)
		})
	}, nil
}

// Do runs fn while holding a permit. The permit is released when fn
// returns or panics.
func (l *Limiter) Do(ctx context.Context, fn func()) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	fn()
	return nil
}

// Capacity returns the configured number of permits.
func (l *Limiter) Capacity() int { return l.capacity }

// Stats returns a snapshot of the limiter state.
func (l *Limiter) Stats() models.LimiterStats {
	return models.LimiterStats{
		Capacity: l.capacity,
		InFlight: int(l.inFlight.Load()),
		Peak:     int(l.peak.Load()),
	}
}
