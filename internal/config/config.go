package config

import (
	"time"
)

// Canonical redirect modes.
const (
	RedirectNone      = ""
	RedirectTemporary = "temporary"
	RedirectPermanent = "permanent"
)

// Link cache types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Parameter formats applied by link parameter formatters.
const (
	FormatSlug  = "slug"
	FormatQuery = "query"
	FormatPath  = "path"
	FormatLower = "lower"
	FormatUpper = "upper"
	FormatRaw   = "raw"
)

// Default values.
const (
	DefaultServerAddress   = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMetricsPath     = "/metrics"
	DefaultHealthPath      = "/healthz"
	DefaultServiceName     = "avaroute"
	DefaultLinkCacheTTL    = 10 * time.Minute
)

// Config is the root configuration.
type Config struct {
	Router          RouterConfig           `yaml:"router" json:"router"`
	Routes          []RouteConfig          `yaml:"routes" json:"routes"`
	Aliases         map[string]string      `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Hooks           []HookConfig           `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Authorize       []string               `yaml:"authorize,omitempty" json:"authorize,omitempty"`
	ParamFormatters []ParamFormatterConfig `yaml:"paramFormatters,omitempty" json:"paramFormatters,omitempty"`
	LinkCache       *LinkCacheConfig       `yaml:"linkCache,omitempty" json:"linkCache,omitempty"`
	Server          ServerConfig           `yaml:"server" json:"server"`
	Logging         LoggingConfig          `yaml:"logging" json:"logging"`
	Tracing         TracingConfig          `yaml:"tracing" json:"tracing"`
	Metrics         MetricsConfig          `yaml:"metrics" json:"metrics"`
}

// RouterConfig configures the router itself.
type RouterConfig struct {
	// Delimiter joins words in URLs: "-" (default) or "_".
	Delimiter string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`

	// Separator is the namespace separator of handler identities.
	Separator string `yaml:"separator,omitempty" json:"separator,omitempty"`

	// LegacyNamespacing selects "_" separated namespaces.
	LegacyNamespacing bool `yaml:"legacyNamespacing,omitempty" json:"legacyNamespacing,omitempty"`

	CallbackParams CallbackParamsConfig `yaml:"callbackParams,omitempty" json:"callbackParams,omitempty"`

	// Tokens adds route map shorthands, e.g. ajax: "[x-requested-with=XMLHttpRequest]".
	Tokens map[string]string `yaml:"tokens,omitempty" json:"tokens,omitempty"`

	// TrailingSlashRedirect defaults to true.
	TrailingSlashRedirect *bool `yaml:"trailingSlashRedirect,omitempty" json:"trailingSlashRedirect,omitempty"`

	// CanonicalRedirect is "", "temporary" or "permanent".
	CanonicalRedirect string `yaml:"canonicalRedirect,omitempty" json:"canonicalRedirect,omitempty"`

	Fallbacks FallbacksConfig `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
}

// RedirectsTrailingSlash reports whether trailing slash redirects are enabled.
func (c *RouterConfig) RedirectsTrailingSlash() bool {
	return c.TrailingSlashRedirect == nil || *c.TrailingSlashRedirect
}

// CallbackParamsConfig renames the parameters that fill identity segments.
type CallbackParamsConfig struct {
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Class     string `yaml:"class,omitempty" json:"class,omitempty"`
	Method    string `yaml:"method,omitempty" json:"method,omitempty"`
}

// FallbacksConfig holds the identities dispatched for terminal signals.
type FallbacksConfig struct {
	NotFound      string `yaml:"notFound,omitempty" json:"notFound,omitempty"`
	Forbidden     string `yaml:"forbidden,omitempty" json:"forbidden,omitempty"`
	NotAuthorized string `yaml:"notAuthorized,omitempty" json:"notAuthorized,omitempty"`
}

// RouteConfig declares one route.
type RouteConfig struct {
	// Map is the route map, e.g. "get /widgets/:id".
	Map string `yaml:"map" json:"map"`

	// Callback is the handler identity template. Empty selects the
	// default namespace, class and method wildcards.
	Callback string `yaml:"callback,omitempty" json:"callback,omitempty"`

	// Data is copied into the call data of every dispatch of the route.
	Data map[string]any `yaml:"data,omitempty" json:"data,omitempty"`
}

// HookConfig declares hooks running targets at a stage.
type HookConfig struct {
	Stage   string   `yaml:"stage" json:"stage"`
	Pattern string   `yaml:"pattern" json:"pattern"`
	Targets []string `yaml:"targets" json:"targets"`
}

// ParamFormatterConfig selects how a link parameter is rendered.
type ParamFormatterConfig struct {
	// Class and Param may be "*".
	Class string `yaml:"class" json:"class"`
	Param string `yaml:"param" json:"param"`

	// Format is one of slug, query, path, lower, upper or raw.
	Format string `yaml:"format" json:"format"`

	// MaxLength truncates slugs when positive.
	MaxLength int `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
}

// LinkCacheConfig configures the link cache.
type LinkCacheConfig struct {
	Enabled    bool         `yaml:"enabled" json:"enabled"`
	Type       string       `yaml:"type,omitempty" json:"type,omitempty"`
	TTL        Duration     `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	MaxEntries int          `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`
	Redis      *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig configures the redis link cache backend.
type RedisConfig struct {
	URL              string   `yaml:"url,omitempty" json:"url,omitempty"`
	MasterName       string   `yaml:"masterName,omitempty" json:"masterName,omitempty"`
	SentinelAddrs    []string `yaml:"sentinelAddrs,omitempty" json:"sentinelAddrs,omitempty"`
	SentinelPassword string   `yaml:"sentinelPassword,omitempty" json:"sentinelPassword,omitempty"`
	Password         string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB               int      `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix        string   `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
	PoolSize         int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	ConnectTimeout   Duration `yaml:"connectTimeout,omitempty" json:"connectTimeout,omitempty"`
	ReadTimeout      Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout     Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	TTLJitter        float64  `yaml:"ttlJitter,omitempty" json:"ttlJitter,omitempty"`
	HashKeys         bool     `yaml:"hashKeys,omitempty" json:"hashKeys,omitempty"`

	// The circuit opens after BreakerThreshold consecutive failures and
	// stays open for BreakerTimeout.
	BreakerThreshold int      `yaml:"breakerThreshold,omitempty" json:"breakerThreshold,omitempty"`
	BreakerTimeout   Duration `yaml:"breakerTimeout,omitempty" json:"breakerTimeout,omitempty"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Address         string   `yaml:"address,omitempty" json:"address,omitempty"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
	HealthPath      string   `yaml:"healthPath,omitempty" json:"healthPath,omitempty"`

	// EscapedFragment lets the _escaped_fragment_ query parameter replace
	// the request path.
	EscapedFragment bool `yaml:"escapedFragment,omitempty" json:"escapedFragment,omitempty"`

	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
}

// RateLimitConfig throttles requests passed to the router. Probes and the
// metrics endpoint are not limited.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond" json:"requestsPerSecond"`

	// Burst defaults to RequestsPerSecond.
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`

	// PerClient keeps one bucket per client IP. Buckets idle for ClientTTL
	// are dropped.
	PerClient bool     `yaml:"perClient,omitempty" json:"perClient,omitempty"`
	ClientTTL Duration `yaml:"clientTTL,omitempty" json:"clientTTL,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	Insecure     bool    `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// DefaultConfig returns a configuration with every default applied and
// no routes.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Router.Delimiter == "" {
		c.Router.Delimiter = "-"
	}
	if c.Router.CallbackParams.Namespace == "" {
		c.Router.CallbackParams.Namespace = "namespace"
	}
	if c.Router.CallbackParams.Class == "" {
		c.Router.CallbackParams.Class = "class"
	}
	if c.Router.CallbackParams.Method == "" {
		c.Router.CallbackParams.Method = "method"
	}

	if c.LinkCache != nil && c.LinkCache.Enabled {
		if c.LinkCache.Type == "" {
			c.LinkCache.Type = CacheTypeMemory
		}
		if c.LinkCache.TTL == 0 {
			c.LinkCache.TTL = Duration(DefaultLinkCacheTTL)
		}
	}

	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Server.HealthPath == "" {
		c.Server.HealthPath = DefaultHealthPath
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.Enabled && c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
