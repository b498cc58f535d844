package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRateLimited = errors.New("rate limit exceeded, please try again later")

// RateLimiter throttles queue operations per user with a Redis
// counter-and-expiry window. Redis being down fails open: matching must
// not depend on the limiter.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// AllowUser records one queue operation for the user and reports whether
// they are inside the window's budget.
func (r *RateLimiter) AllowUser(ctx context.Context, userID string) error {
	key := fmt.Sprintf("ratelimit:queue:%s", userID)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	if count > int64(r.limit) {
		return ErrRateLimited
	}
	return nil
}

// SuspiciousUserAgent flags obvious scripted clients.
func SuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
