package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter without real sleeping. Sleeps advance the
// clock by the requested duration.
type fakeClock struct {
	now time.Time
}

func newTestLimiter(limit int, window time.Duration) (*SlidingWindow, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewSlidingWindow(limit, window)
	limiter.now = func() time.Time { return clock.now }
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		clock.now = clock.now.Add(d)
		return nil
	}
	return limiter, clock
}

func TestSlidingWindow_Wait(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to limit without blocking", func(t *testing.T) {
		limiter, clock := newTestLimiter(3, time.Minute)
		start := clock.now

		for i := 0; i < 3; i++ {
			require.NoError(t, limiter.Wait(ctx))
		}
		assert.Equal(t, start, clock.now)
		assert.Equal(t, 0, limiter.Remaining())
	})

	t.Run("blocks until oldest slot leaves the window", func(t *testing.T) {
		limiter, clock := newTestLimiter(2, time.Minute)
		start := clock.now

		require.NoError(t, limiter.Wait(ctx))
		require.NoError(t, limiter.Wait(ctx))
		require.NoError(t, limiter.Wait(ctx))

		assert.Equal(t, start.Add(time.Minute), clock.now)
	})

	t.Run("slots free up as time passes", func(t *testing.T) {
		limiter, clock := newTestLimiter(2, time.Minute)

		require.NoError(t, limiter.Wait(ctx))
		clock.now = clock.now.Add(30 * time.Second)
		require.NoError(t, limiter.Wait(ctx))

		// Third request waits only for the first slot to expire.
		before := clock.now
		require.NoError(t, limiter.Wait(ctx))
		assert.Equal(t, before.Add(30*time.Second), clock.now)
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		limiter, _ := newTestLimiter(1, time.Minute)
		limiter.sleep = func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		}

		cancelled, cancel := context.WithCancel(ctx)
		require.NoError(t, limiter.Wait(cancelled))

		cancel()
		err := limiter.Wait(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("shared budget across goroutine handles", func(t *testing.T) {
		limiter, clock := newTestLimiter(600, 5*time.Minute)
		start := clock.now

		for i := 0; i < 600; i++ {
			require.NoError(t, limiter.Wait(ctx))
		}
		assert.Equal(t, start, clock.now)

		require.NoError(t, limiter.Wait(ctx))
		assert.Equal(t, start.Add(5*time.Minute), clock.now)
	})
}

func TestSlidingWindow_Remaining(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(5, time.Minute)

	assert.Equal(t, 5, limiter.Remaining())

	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	assert.Equal(t, 3, limiter.Remaining())

	clock.now = clock.now.Add(2 * time.Minute)
	assert.Equal(t, 5, limiter.Remaining())
}
