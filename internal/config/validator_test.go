package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig_Default(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateConfig(DefaultConfig()))
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is nil")
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
	}{
		{
			name:     "delimiter",
			mutate:   func(c *Config) { c.Router.Delimiter = "." },
			wantPath: "router.delimiter",
		},
		{
			name: "separator with legacy namespacing",
			mutate: func(c *Config) {
				c.Router.Separator = "."
				c.Router.LegacyNamespacing = true
			},
			wantPath: "router.separator",
		},
		{
			name:     "duplicate callback param",
			mutate:   func(c *Config) { c.Router.CallbackParams.Method = "class" },
			wantPath: "router.callbackParams.method",
		},
		{
			name:     "invalid callback param",
			mutate:   func(c *Config) { c.Router.CallbackParams.Class = "1st" },
			wantPath: "router.callbackParams.class",
		},
		{
			name:     "empty token",
			mutate:   func(c *Config) { c.Router.Tokens = map[string]string{"ajax": " "} },
			wantPath: "router.tokens.ajax",
		},
		{
			name:     "canonical redirect",
			mutate:   func(c *Config) { c.Router.CanonicalRedirect = "always" },
			wantPath: "router.canonicalRedirect",
		},
		{
			name:     "route map",
			mutate:   func(c *Config) { c.Routes = []RouteConfig{{Callback: "Widgets::show"}} },
			wantPath: "routes[0].map",
		},
		{
			name:     "route callback",
			mutate:   func(c *Config) { c.Routes = []RouteConfig{{Map: "/", Callback: "Widgets show"}} },
			wantPath: "routes[0].callback",
		},
		{
			name:     "alias key",
			mutate:   func(c *Config) { c.Aliases = map[string]string{"w": ""} },
			wantPath: "aliases.w",
		},
		{
			name:     "hook stage",
			mutate:   func(c *Config) { c.Hooks = []HookConfig{{Stage: "during", Pattern: "*", Targets: []string{"A::b"}}} },
			wantPath: "hooks[0].stage",
		},
		{
			name:     "hook targets",
			mutate:   func(c *Config) { c.Hooks = []HookConfig{{Stage: "catch:error", Pattern: "*"}} },
			wantPath: "hooks[0].targets",
		},
		{
			name:     "authorize",
			mutate:   func(c *Config) { c.Authorize = []string{""} },
			wantPath: "authorize[0]",
		},
		{
			name: "param format",
			mutate: func(c *Config) {
				c.ParamFormatters = []ParamFormatterConfig{{Class: "*", Param: "title", Format: "kebab"}}
			},
			wantPath: "paramFormatters[0].format",
		},
		{
			name:     "cache type",
			mutate:   func(c *Config) { c.LinkCache = &LinkCacheConfig{Enabled: true, Type: "memcached"} },
			wantPath: "linkCache.type",
		},
		{
			name:     "redis without url",
			mutate:   func(c *Config) { c.LinkCache = &LinkCacheConfig{Enabled: true, Type: CacheTypeRedis} },
			wantPath: "linkCache.redis",
		},
		{
			name: "sentinel without master",
			mutate: func(c *Config) {
				c.LinkCache = &LinkCacheConfig{
					Enabled: true,
					Type:    CacheTypeRedis,
					Redis:   &RedisConfig{SentinelAddrs: []string{"localhost:26379"}},
				}
			},
			wantPath: "linkCache.redis.masterName",
		},
		{
			name: "rate limit without rate",
			mutate: func(c *Config) {
				c.Server.RateLimit = &RateLimitConfig{Enabled: true}
			},
			wantPath: "server.rateLimit.requestsPerSecond",
		},
		{
			name: "negative breaker threshold",
			mutate: func(c *Config) {
				c.LinkCache = &LinkCacheConfig{
					Enabled: true,
					Type:    CacheTypeRedis,
					Redis:   &RedisConfig{URL: "redis://localhost:6379", BreakerThreshold: -1},
				}
			},
			wantPath: "linkCache.redis.breakerThreshold",
		},
		{
			name:     "log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			wantPath: "logging.level",
		},
		{
			name:     "sampling rate",
			mutate:   func(c *Config) { c.Tracing.SamplingRate = 2 },
			wantPath: "tracing.samplingRate",
		},
		{
			name: "metrics path conflict",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Path = c.Server.HealthPath
			},
			wantPath: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.True(t, verrs.HasErrors())

			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidateConfig_DisabledCacheSkipped(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.LinkCache = &LinkCacheConfig{Type: "memcached"}
	assert.NoError(t, ValidateConfig(cfg))
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ValidationErrors{}.Error())

	errs := ValidationErrors{
		{Path: "routes[0].map", Message: "route map is required"},
		{Message: "configuration is nil"},
	}
	msg := errs.Error()
	assert.Contains(t, msg, "2 error(s)")
	assert.Contains(t, msg, "routes[0].map: route map is required")
	assert.Contains(t, msg, "  - configuration is nil")
}
