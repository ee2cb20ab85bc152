package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// staleBucketAge bounds how long an idle client's bucket survives before the
// inline sweep drops it.
const staleBucketAge = 15 * time.Minute

// RateLimiter throttles callers with a token bucket per client key. Every
// accepted automation job eventually drives a real browser session, so the
// submission endpoints cap how fast any one caller can enqueue work.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*tokenBucket
	rate      float64
	burst     float64
	lastSweep time.Time
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows rate requests/sec with the given burst per client.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients:   make(map[string]*tokenBucket),
		rate:      rate,
		burst:     float64(burst),
		lastSweep: time.Now(),
	}
}

// Allow spends one token for key, refilling by elapsed time. Stale buckets
// are swept inline so the limiter needs no background goroutine.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	b, ok := rl.clients[key]
	if !ok {
		b = &tokenBucket{tokens: rl.burst, seen: now}
		rl.clients[key] = b
	}
	b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < staleBucketAge {
		return
	}
	for key, b := range rl.clients {
		if now.Sub(b.seen) > staleBucketAge {
			delete(rl.clients, key)
		}
	}
	rl.lastSweep = now
}

// clientKey prefers the account header over the caller address so several
// studios behind one NAT do not share a bucket.
func clientKey(r *http.Request) string {
	if account := r.Header.Get("X-Account-Id"); account != "" {
		return "account:" + account
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return "ip:" + xri
	}
	return "ip:" + r.RemoteAddr
}

// RateLimit returns an HTTP middleware that rejects requests exceeding the
// configured rate with 429 Too Many Requests and a Retry-After hint.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / rate)))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
