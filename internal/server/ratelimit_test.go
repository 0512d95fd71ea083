package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
)

func TestRateLimiter_Global(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 2, false, 0)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.False(t, rl.Allow("c"))
	assert.Equal(t, 0, rl.clientCount())
}

func TestRateLimiter_PerClient(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 0, true, time.Hour)
	assert.Equal(t, 1, rl.burst)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.clientCount())
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(10, 10, true, time.Minute)
	require.True(t, rl.Allow("10.0.0.1"))
	require.True(t, rl.Allow("10.0.0.2"))

	rl.mu.Lock()
	rl.clients["10.0.0.1"].lastAccess = time.Now().Add(-2 * time.Minute)
	rl.lastSweep = time.Now().Add(-time.Minute)
	rl.mu.Unlock()

	require.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 1, rl.clientCount())
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.RateLimit = &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		Burst:             1,
		PerClient:         true,
	}
	srv := New(cfg, staticSource{testRouter(t)},
		WithMetrics(observability.NewMetrics("avaroute_ratelimit_test")),
	)
	h := srv.Handler()
	client := map[string]string{"X-Forwarded-For": "198.51.100.7"}

	w := do(t, h, http.MethodGet, "/widgets/1", client)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/widgets/1", client)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	w = do(t, h, http.MethodGet, "/widgets/1", map[string]string{"X-Forwarded-For": "198.51.100.8"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, config.DefaultHealthPath, client)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, config.DefaultMetricsPath, client)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `outcome="rate_limited",status="429"`)
}

func TestRateLimitFromConfig(t *testing.T) {
	t.Parallel()

	assert.Nil(t, rateLimitFromConfig(nil))
	assert.Nil(t, rateLimitFromConfig(&config.RateLimitConfig{RequestsPerSecond: 5}))

	rl := rateLimitFromConfig(&config.RateLimitConfig{Enabled: true, RequestsPerSecond: 5})
	require.NotNil(t, rl)
	assert.Equal(t, 5, rl.burst)
	assert.Equal(t, DefaultClientTTL, rl.clientTTL)
}
