package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := NewLimiter(2)

	var current, maxSeen atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func() {
				n := current.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
	stats := l.Stats()
	assert.Equal(t, 2, stats.Capacity)
	assert.Equal(t, 0, stats.InFlight)
	assert.Equal(t, 2, stats.Peak)
}

func TestLimiter_ReleaseIsIdempotent(t *testing.T) {
	l := NewLimiter(1)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	assert.Equal(t, 0, l.Stats().InFlight)

	// A double release must not have created a second permit.
	r1, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_ReleasedOnPanic(t *testing.T) {
	l := NewLimiter(1)

	func() {
		defer func() { _ = recover() }()
		_ = l.Do(context.Background(), func() { panic("boom") })
	}()

	assert.Equal(t, 0, l.Stats().InFlight)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := l.Acquire(ctx)
	require.NoError(t, err)
	release()
}

func TestNewLimiter_MinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, NewLimiter(0).Capacity())
	assert.Equal(t, 1, NewLimiter(-3).Capacity())
}
