package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// DefaultClientTTL is how long an idle per-client bucket is kept.
const DefaultClientTTL = 10 * time.Minute

type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter is a token bucket limiter, global or per client IP.
type RateLimiter struct {
	limiter   *rate.Limiter
	perClient bool
	rps       int
	burst     int
	clientTTL time.Duration

	mu        sync.Mutex
	clients   map[string]*clientEntry
	lastSweep time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with
// the given burst.
func NewRateLimiter(rps, burst int, perClient bool, clientTTL time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = rps
	}
	if clientTTL <= 0 {
		clientTTL = DefaultClientTTL
	}
	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		perClient: perClient,
		rps:       rps,
		burst:     burst,
		clientTTL: clientTTL,
		clients:   make(map[string]*clientEntry),
		lastSweep: time.Now(),
	}
}

// Allow reports whether a request of clientIP may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	if !rl.perClient {
		return rl.limiter.Allow()
	}

	now := time.Now()
	rl.mu.Lock()
	if now.Sub(rl.lastSweep) > rl.clientTTL/2 {
		rl.sweep(now)
	}
	entry, ok := rl.clients[clientIP]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.clients[clientIP] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// sweep drops buckets idle for longer than the client TTL. Callers hold
// rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastAccess) > rl.clientTTL {
			delete(rl.clients, ip)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) clientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// RateLimit rejects requests over the limit with 429.
func RateLimit(rl *RateLimiter, logger observability.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		if !rl.Allow(clientIP) {
			logger.Warn("rate limit exceeded",
				observability.String("requestID", GetRequestID(c)),
				observability.String("clientIP", clientIP),
				observability.String("path", c.Request.URL.Path),
			)
			c.Set(outcomeKey, "rate_limited")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too Many Requests",
				"message": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// rateLimitFromConfig returns nil when rate limiting is disabled.
func rateLimitFromConfig(cfg *config.RateLimitConfig) *RateLimiter {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.PerClient, cfg.ClientTTL.Duration())
}
