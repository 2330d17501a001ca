package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"microblog/internal/logging"
	"microblog/internal/metrics"
)

const limiterIdleTTL = time.Hour

// RateLimiter is a per-client-IP token bucket.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter allows requests per window for each IP, refilling evenly.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests < 1 {
		requests = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Every(window / time.Duration(requests)),
		burst:    requests,
		now:      time.Now,
	}
}

// Allow reports whether ip may make another request now.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	now := rl.now()
	rl.sweep(now)
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// sweep drops idle limiters at most once per TTL. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < limiterIdleTTL {
		return
	}
	rl.lastSweep = now
	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > limiterIdleTTL {
			delete(rl.limiters, ip)
		}
	}
}

// RateLimit rejects requests over the limit with 429. Auth routes answer
// with a "message" body, so the rejection does too.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		metrics.RateLimitRejections.WithLabelValues(c.FullPath()).Inc()
		logging.Ctx(c.Request.Context()).Warn().
			Str("client_ip", c.ClientIP()).
			Str("path", c.Request.URL.Path).
			Msg("rate limit exceeded")
		c.Header("Retry-After", "60")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "请求过于频繁，请稍后再试"})
	}
}
