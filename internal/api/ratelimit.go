package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 5 * time.Minute
	rejectLogInterval = time.Second
)

type ipWindow struct {
	hits     []time.Time
	lastSeen time.Time
}

// RateLimiter allows each client IP at most requests admissions inside any
// sliding window of the configured length.
type RateLimiter struct {
	mu       sync.Mutex
	ips      map[string]*ipWindow
	requests int
	window   time.Duration
	now      func() time.Time
	rejected rate.Sometimes
}

// NewRateLimiter admits requests per window for every IP. A non-positive
// requests value disables limiting.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		ips:      make(map[string]*ipWindow),
		requests: requests,
		window:   window,
		now:      time.Now,
		rejected: rate.Sometimes{First: 1, Interval: rejectLogInterval},
	}
}

// Allow reports whether ip may perform another request now, and records the
// admission if so.
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.requests <= 0 || rl.window <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.ips[ip]
	if !ok {
		w = &ipWindow{}
		rl.ips[ip] = w
	}
	w.lastSeen = now

	// hits are appended in time order; drop the prefix that left the window
	kept := 0
	for kept < len(w.hits) && now.Sub(w.hits[kept]) >= rl.window {
		kept++
	}
	w.hits = w.hits[kept:]

	if len(w.hits) >= rl.requests {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

// Run evicts limiters for IPs that have been idle, until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle(rl.now().Add(-limiterIdleTTL))
		}
	}
}

func (rl *RateLimiter) evictIdle(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	evicted := 0
	for ip, w := range rl.ips {
		if w.lastSeen.Before(cutoff) {
			delete(rl.ips, ip)
			evicted++
		}
	}
	return evicted
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			rl.rejected.Do(func() {
				log.Warn().Str("client_ip", ip).Msg("rate limit exceeded")
			})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":  "rate limit exceeded",
				"detail": fmt.Sprintf("maximum %d requests per %s", rl.requests, rl.window),
			})
			return
		}
		c.Next()
	}
}
