// Package middleware holds the HTTP middleware shared across routes.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/handedalcali/qr-attendance/internal/metrics"
)

type windowCounter struct {
	start time.Time
	count int
}

// RateLimiter applies a fixed-window per-client request cap.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*windowCounter
	window  time.Duration
	max     int
	nowF    func() time.Time
}

// NewRateLimiter returns a limiter allowing max requests per client per window.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*windowCounter),
		window:  window,
		max:     max,
		nowF:    time.Now,
	}
}

// allow reports whether the client may proceed and, when not, the seconds
// until its window resets.
func (rl *RateLimiter) allow(client string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowF()
	wc, ok := rl.clients[client]
	if !ok || now.Sub(wc.start) >= rl.window {
		// Occasionally drop stale windows so the map does not grow forever.
		if len(rl.clients) > 10000 {
			for k, v := range rl.clients {
				if now.Sub(v.start) >= rl.window {
					delete(rl.clients, k)
				}
			}
		}
		rl.clients[client] = &windowCounter{start: now, count: 1}
		return true, 0
	}
	if wc.count >= rl.max {
		retry := int(rl.window.Seconds() - now.Sub(wc.start).Seconds())
		if retry < 1 {
			retry = 1
		}
		return false, retry
	}
	wc.count++
	return true, 0
}

// Handler is the gin middleware form of the limiter.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry := rl.allow(c.ClientIP())
		if !ok {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
