package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"rps_arena/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter shares rdb with the rate limiter. A nil client keeps
// the in-process limiter.
func InitRedisRateLimiter(rdb *redis.Client) {
	redisClient = rdb
}

// RedisRateLimit is a fixed-window limiter using Redis INCR/EXPIRE.
// key format: rl:<window_seconds>:<identifier>
// Authenticated requests are limited per player, the rest per IP. Without
// Redis it falls back to SimpleRateLimit's in-process counters.
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	local := SimpleRateLimit(maxRequests, window)
	return func(c *gin.Context) {
		if redisClient == nil {
			local(c)
			return
		}

		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + identity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		val, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			logger.Warn("rate limiter redis error", "error", err)
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			redisClient.Expire(ctx, key, window)
		}

		if !admit(c, int64(maxRequests), val, window) {
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) string {
	if v, ok := c.Get(CtxPlayerID); ok {
		if id, ok := v.(int64); ok {
			return "p" + strconv.FormatInt(id, 10)
		}
	}
	return c.ClientIP()
}

// admit sets the limit headers and aborts the request once count exceeds max.
func admit(c *gin.Context, max, count int64, window time.Duration) bool {
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Limit", strconv.FormatInt(max, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

	if count > max {
		RLBlocked.WithLabelValues(c.FullPath()).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded",
			"retry_after": int(window.Seconds()),
		})
		return false
	}
	RLRequests.WithLabelValues(c.FullPath()).Inc()
	return true
}
