package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig sets the per-client token buckets. Reads and writes are
// metered separately so a burst of snapshot submissions cannot starve the
// dashboard for the same client.
type RateLimitConfig struct {
	RPS        float64
	Burst      int
	WriteRPS   float64 // 0 uses RPS
	WriteBurst int     // 0 uses Burst
	IdleTTL    time.Duration
}

type clientBuckets struct {
	read     *rate.Limiter
	write    *rate.Limiter
	lastSeen time.Time
}

// RateLimiter meters requests per client IP.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBuckets
}

// NewRateLimiter returns a limiter with missing settings defaulted.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(int(math.Ceil(cfg.RPS))*2, 1)
	}
	if cfg.WriteRPS <= 0 {
		cfg.WriteRPS = cfg.RPS
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteBurst = cfg.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*clientBuckets),
	}
}

// Middleware returns the gin handler. Rejected requests get 429 with a
// Retry-After derived from the bucket's refill time.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := rl.now()
		lim := rl.bucket(c.ClientIP(), isWrite(c.Request.Method), now)

		r := lim.ReserveN(now, 1)
		if !r.OK() {
			rl.reject(c, time.Second)
			return
		}
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			rl.reject(c, delay)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, wait time.Duration) {
	secs := int(math.Ceil(wait.Seconds()))
	c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
}

func (rl *RateLimiter) bucket(ip string, write bool, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cb, ok := rl.clients[ip]
	if !ok {
		cb = &clientBuckets{
			read:  rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst),
			write: rate.NewLimiter(rate.Limit(rl.cfg.WriteRPS), rl.cfg.WriteBurst),
		}
		rl.clients[ip] = cb
	}
	cb.lastSeen = now
	if write {
		return cb.write
	}
	return cb.read
}

// Sweep drops clients idle for longer than IdleTTL and returns how many.
func (rl *RateLimiter) Sweep() int {
	cutoff := rl.now().Add(-rl.cfg.IdleTTL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for ip, cb := range rl.clients {
		if cb.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			n++
		}
	}
	return n
}

// Run sweeps idle clients every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Len reports the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
