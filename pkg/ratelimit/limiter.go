package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates outbound registry calls. Wait blocks until a request slot is
// available or the context is cancelled. All clients sharing a Limiter share
// its budget.
type Limiter interface {
	Wait(ctx context.Context) error
}

// SlidingWindow is an in-process Limiter that allows at most limit requests
// in any rolling window.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSlidingWindow creates a limiter allowing limit requests per window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until a slot opens in the window, recording the acquired slot.
func (s *SlidingWindow) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		now := s.now()
		s.evict(now)

		if len(s.stamps) < s.limit {
			s.stamps = append(s.stamps, now)
			s.mu.Unlock()
			return nil
		}

		// Oldest stamp leaving the window frees the next slot.
		retryIn := s.stamps[0].Add(s.window).Sub(now)
		s.mu.Unlock()

		if retryIn <= 0 {
			continue
		}
		if err := s.sleep(ctx, retryIn); err != nil {
			return err
		}
	}
}

// Remaining reports how many slots are free in the current window.
func (s *SlidingWindow) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(s.now())
	return s.limit - len(s.stamps)
}

func (s *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.stamps) && !s.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.stamps = append(s.stamps[:0], s.stamps[i:]...)
	}
}
