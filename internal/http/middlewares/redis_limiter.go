package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leafscan/leafscan-api/internal/redisclient"
)

// RedisRateLimiter is the shared-state variant of the fixed-window
// limiter, for deployments with more than one API instance. On redis
// failure the request is let through: throttling is hardening, not a
// dependency the login path may die on.
type RedisRateLimiter struct {
	client *redisclient.Client
	limit  int64
	window time.Duration
}

func NewRedisRateLimiter(client *redisclient.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

func (rl *RedisRateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		ctx := c.Request.Context()

		count, err := rl.client.Incr(ctx, "ratelimit:"+key, rl.window)

		if err != nil {
			c.Next()
			return
		}

		if count > rl.limit {
			retryAfter := int(rl.window.Seconds())

			if ttl, err := rl.client.TTL(ctx, "ratelimit:"+key); err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds())
			}

			abortRateLimited(c, retryAfter)

			return
		}

		c.Next()
	}
}
