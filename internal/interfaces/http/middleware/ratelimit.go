package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/pkg/errors"
)

type clientBucket struct {
	bucket   *ratelimit.Bucket
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.  Analysis endpoints cost
// more tokens than reads.
type RateLimiter struct {
	rate     float64
	capacity int64
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
}

// NewRateLimiter returns a limiter for cfg, or nil when RequestsPerSecond is
// zero.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int64(math.Ceil(cfg.RequestsPerSecond))
	}
	ttl := cfg.ClientTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RateLimiter{
		rate:     cfg.RequestsPerSecond,
		capacity: burst,
		ttl:      ttl,
		now:      time.Now,
		clients:  make(map[string]*clientBucket),
	}
}

func (rl *RateLimiter) bucketFor(client string) *ratelimit.Bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cb, ok := rl.clients[client]
	if !ok {
		cb = &clientBucket{bucket: ratelimit.NewBucketWithRate(rl.rate, rl.capacity)}
		rl.clients[client] = cb
	}
	cb.lastSeen = rl.now()
	return cb.bucket
}

// Cleanup drops clients idle longer than the TTL whose bucket has refilled.
// It returns the number of clients removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.ttl)
	removed := 0
	for ip, cb := range rl.clients {
		if cb.lastSeen.Before(cutoff) && cb.bucket.Available() == cb.bucket.Capacity() {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// tokenCost weighs requests: analysis work costs more than lookups.
func tokenCost(r *http.Request) int64 {
	if r.Method == http.MethodPost {
		return 5
	}
	return 1
}

// Handler rejects requests once the client's bucket is empty.  It expects
// RemoteAddr to have been resolved by chi's RealIP middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cost := tokenCost(r)
		if cost > rl.capacity {
			cost = rl.capacity
		}
		bucket := rl.bucketFor(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.capacity, 10))
		if bucket.TakeAvailable(cost) < cost {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(float64(cost)/rl.rate))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"code":    string(errors.ErrCodeTooManyRequests),
				"message": "rate limit exceeded",
			})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
