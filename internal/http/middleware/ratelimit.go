package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type window struct {
	start time.Time
	count int64
}

// SimpleRateLimit is a per-process fixed-window limiter keyed like
// RedisRateLimit. Each call owns its own counters.
func SimpleRateLimit(maxRequests int, size time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	windows := make(map[string]*window)

	return func(c *gin.Context) {
		key := identity(c)
		now := time.Now()

		mu.Lock()
		w, ok := windows[key]
		if !ok || now.Sub(w.start) > size {
			w = &window{start: now}
			windows[key] = w
		}
		w.count++
		count := w.count
		if len(windows) > 10000 {
			for k, old := range windows {
				if now.Sub(old.start) > size {
					delete(windows, k)
				}
			}
		}
		mu.Unlock()

		if !admit(c, int64(maxRequests), count, size) {
			return
		}
		c.Next()
	}
}
