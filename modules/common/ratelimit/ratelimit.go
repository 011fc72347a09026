package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// Limiter - fixed-window admission check on Redis. One INCR per request; the
// key expires at the end of the window. When Redis itself is unreachable the
// limiter fails open: product availability beats quota enforcement while the
// quota store is down, but every such admit is logged as degraded mode.
type Limiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

var _ pipeline.RateLimiter = (*Limiter)(nil)

// New - limiter allowing max requests per window.
func New(rdb *redis.Client, max int, windowSec int) *Limiter {
	return &Limiter{
		rdb:    rdb,
		max:    max,
		window: time.Duration(windowSec) * time.Second,
	}
}

// Allow - admit or reject one request for the identity key.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.rdb == nil {
		log.Printf("⚠️  [RateLimit] No Redis connection, running in degraded mode (allow %s)", key)
		return true
	}

	redisKey := "ratelimit:" + key
	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Printf("⚠️  [RateLimit] Redis error, degraded mode (allow %s): %v", key, err)
		return true
	}

	if count == 1 {
		// First hit opens the window.
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			log.Printf("⚠️  [RateLimit] Failed to set window expiry on %s: %v", redisKey, err)
		}
	}

	if count > int64(l.max) {
		log.Printf("🚫 [RateLimit] Denied %s (%d/%d in window)", key, count, l.max)
		return false
	}
	return true
}
