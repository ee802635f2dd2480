package ratelimit

import (
	"context"
	"time"

	"github.com/fernlabs/clover/pkg/redis"
)

// RedisLimiter is a Limiter backed by a shared Redis sliding window, so
// multiple service instances draw from one budget.
type RedisLimiter struct {
	limiter *redis.RateLimiter
	key     string
	limit   int64
	window  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRedisLimiter creates a distributed limiter for the given key.
func NewRedisLimiter(client *redis.Client, key string, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis.NewRateLimiter(client, "clover:ratelimit:"),
		key:     key,
		limit:   limit,
		window:  window,
		sleep:   sleepContext,
	}
}

// Remaining reports how many request slots are left in the shared window.
// Redis errors report a zero budget rather than failing the caller.
func (r *RedisLimiter) Remaining() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	remaining, err := r.limiter.GetRemaining(ctx, r.key, r.limit, r.window)
	if err != nil {
		return 0
	}
	return int(remaining)
}

// Wait blocks until Redis grants a slot or the context is cancelled.
func (r *RedisLimiter) Wait(ctx context.Context) error {
	for {
		result, err := r.limiter.Allow(ctx, r.key, r.limit, r.window)
		if err != nil {
			return err
		}
		if result.Allowed {
			return nil
		}

		retryIn := result.RetryIn
		if retryIn <= 0 {
			retryIn = 100 * time.Millisecond
		}
		if err := r.sleep(ctx, retryIn); err != nil {
			return err
		}
	}
}
