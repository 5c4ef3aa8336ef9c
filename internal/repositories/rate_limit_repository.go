package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository counts hits per key inside a fixed window.
type RateLimitRepository interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitRepo keeps counters in Redis.
type RateLimitRepo struct {
	redis *redis.Client
}

// NewRateLimitRepo constructs a RateLimitRepo.
func NewRateLimitRepo(client *redis.Client) *RateLimitRepo {
	return &RateLimitRepo{redis: client}
}

// Increment bumps the counter and starts the window on the first hit.
func (r *RateLimitRepo) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
