package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/router"
)

var (
	paramNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	tokenNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validLogFormats = map[string]bool{"json": true, "console": true}

var validParamFormats = map[string]bool{
	FormatSlug:  true,
	FormatQuery: true,
	FormatPath:  true,
	FormatLower: true,
	FormatUpper: true,
	FormatRaw:   true,
}

// ValidationError is a validation failure at a configuration path.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects validation failures.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed with %d error(s):\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors reports whether any failure was collected.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates a Config.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates cfg, returning ValidationErrors on failure.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates cfg.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = nil

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRouter(&cfg.Router)
	v.validateRoutes(cfg.Routes)
	v.validateAliases(cfg.Aliases)
	v.validateHooks(cfg.Hooks)
	v.validateAuthorize(cfg.Authorize)
	v.validateParamFormatters(cfg.ParamFormatters)
	v.validateLinkCache(cfg.LinkCache)
	v.validateServer(&cfg.Server)
	v.validateLogging(&cfg.Logging)
	v.validateTracing(&cfg.Tracing)
	v.validateMetrics(&cfg.Metrics, &cfg.Server)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateRouter(rc *RouterConfig) {
	if rc.Delimiter != "-" && rc.Delimiter != "_" {
		v.addError("router.delimiter", fmt.Sprintf("must be \"-\" or \"_\", got %q", rc.Delimiter))
	}
	if rc.Separator != "" && rc.LegacyNamespacing {
		v.addError("router.separator", "cannot be combined with legacyNamespacing")
	}
	if strings.ContainsAny(rc.Separator, "*:/ ") {
		v.addError("router.separator", fmt.Sprintf("invalid separator %q", rc.Separator))
	}

	names := map[string]string{}
	for _, p := range []struct{ path, name string }{
		{"router.callbackParams.namespace", rc.CallbackParams.Namespace},
		{"router.callbackParams.class", rc.CallbackParams.Class},
		{"router.callbackParams.method", rc.CallbackParams.Method},
	} {
		if !paramNameRegex.MatchString(p.name) {
			v.addError(p.path, fmt.Sprintf("invalid parameter name %q", p.name))
			continue
		}
		if other, ok := names[p.name]; ok {
			v.addError(p.path, fmt.Sprintf("duplicates %s", other))
		}
		names[p.name] = p.path
	}

	for token, conditions := range rc.Tokens {
		path := fmt.Sprintf("router.tokens.%s", token)
		if !tokenNameRegex.MatchString(token) {
			v.addError(path, "invalid token name")
		}
		if strings.TrimSpace(conditions) == "" {
			v.addError(path, "conditions are required")
		}
	}

	switch rc.CanonicalRedirect {
	case RedirectNone, RedirectTemporary, RedirectPermanent:
	default:
		v.addError("router.canonicalRedirect",
			fmt.Sprintf("must be %q or %q, got %q", RedirectTemporary, RedirectPermanent, rc.CanonicalRedirect))
	}
}

func (v *Validator) validateRoutes(routes []RouteConfig) {
	for i, route := range routes {
		path := fmt.Sprintf("routes[%d]", i)
		if strings.TrimSpace(route.Map) == "" {
			v.addError(path+".map", "route map is required")
		}
		if strings.ContainsAny(route.Callback, " /") {
			v.addError(path+".callback", fmt.Sprintf("invalid callback %q", route.Callback))
		}
	}
}

func (v *Validator) validateAliases(aliases map[string]string) {
	for alias, key := range aliases {
		path := fmt.Sprintf("aliases.%s", alias)
		if strings.TrimSpace(alias) == "" {
			v.addError("aliases", "alias name is required")
		}
		if strings.TrimSpace(key) == "" {
			v.addError(path, "link key is required")
		}
	}
}

func (v *Validator) validateHooks(hooks []HookConfig) {
	for i, hook := range hooks {
		path := fmt.Sprintf("hooks[%d]", i)
		if _, err := router.ParseStage(hook.Stage); err != nil {
			v.addError(path+".stage", err.Error())
		}
		if strings.TrimSpace(hook.Pattern) == "" {
			v.addError(path+".pattern", "pattern is required")
		}
		if len(hook.Targets) == 0 {
			v.addError(path+".targets", "at least one target is required")
		}
		for j, target := range hook.Targets {
			if strings.TrimSpace(target) == "" {
				v.addError(fmt.Sprintf("%s.targets[%d]", path, j), "target is empty")
			}
		}
	}
}

func (v *Validator) validateAuthorize(patterns []string) {
	for i, p := range patterns {
		if strings.TrimSpace(p) == "" {
			v.addError(fmt.Sprintf("authorize[%d]", i), "pattern is empty")
		}
	}
}

func (v *Validator) validateParamFormatters(formatters []ParamFormatterConfig) {
	for i, f := range formatters {
		path := fmt.Sprintf("paramFormatters[%d]", i)
		if f.Class == "" {
			v.addError(path+".class", "class is required")
		}
		if f.Param == "" {
			v.addError(path+".param", "param is required")
		}
		if !validParamFormats[f.Format] {
			v.addError(path+".format", fmt.Sprintf("unknown format %q", f.Format))
		}
		if f.MaxLength < 0 {
			v.addError(path+".maxLength", "must not be negative")
		}
	}
}

func (v *Validator) validateLinkCache(lc *LinkCacheConfig) {
	if lc == nil || !lc.Enabled {
		return
	}

	switch lc.Type {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if lc.Redis == nil || (lc.Redis.URL == "" && len(lc.Redis.SentinelAddrs) == 0) {
			v.addError("linkCache.redis", "url or sentinelAddrs is required for redis cache")
		} else if len(lc.Redis.SentinelAddrs) > 0 && lc.Redis.MasterName == "" {
			v.addError("linkCache.redis.masterName", "masterName is required with sentinelAddrs")
		}
		if lc.Redis != nil && (lc.Redis.TTLJitter < 0 || lc.Redis.TTLJitter > 1) {
			v.addError("linkCache.redis.ttlJitter", "must be between 0 and 1")
		}
		if lc.Redis != nil && lc.Redis.BreakerThreshold < 0 {
			v.addError("linkCache.redis.breakerThreshold", "must not be negative")
		}
		if lc.Redis != nil && lc.Redis.BreakerTimeout < 0 {
			v.addError("linkCache.redis.breakerTimeout", "must not be negative")
		}
	default:
		v.addError("linkCache.type", fmt.Sprintf("unknown cache type %q", lc.Type))
	}

	if lc.TTL < 0 {
		v.addError("linkCache.ttl", "must not be negative")
	}
	if lc.MaxEntries < 0 {
		v.addError("linkCache.maxEntries", "must not be negative")
	}
}

func (v *Validator) validateServer(sc *ServerConfig) {
	if sc.Address == "" {
		v.addError("server.address", "address is required")
	}
	if sc.ReadTimeout < 0 {
		v.addError("server.readTimeout", "must not be negative")
	}
	if sc.WriteTimeout < 0 {
		v.addError("server.writeTimeout", "must not be negative")
	}
	if !strings.HasPrefix(sc.HealthPath, "/") {
		v.addError("server.healthPath", "must start with /")
	}
	if rl := sc.RateLimit; rl != nil && rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			v.addError("server.rateLimit.requestsPerSecond", "must be positive")
		}
		if rl.Burst < 0 {
			v.addError("server.rateLimit.burst", "must not be negative")
		}
		if rl.ClientTTL < 0 {
			v.addError("server.rateLimit.clientTTL", "must not be negative")
		}
	}
}

func (v *Validator) validateLogging(lc *LoggingConfig) {
	if !validLogLevels[strings.ToLower(lc.Level)] {
		v.addError("logging.level", fmt.Sprintf("unknown level %q", lc.Level))
	}
	if !validLogFormats[strings.ToLower(lc.Format)] {
		v.addError("logging.format", fmt.Sprintf("unknown format %q", lc.Format))
	}
}

func (v *Validator) validateTracing(tc *TracingConfig) {
	if tc.SamplingRate < 0 || tc.SamplingRate > 1 {
		v.addError("tracing.samplingRate", "must be between 0 and 1")
	}
}

func (v *Validator) validateMetrics(mc *MetricsConfig, sc *ServerConfig) {
	if !mc.Enabled {
		return
	}
	if !strings.HasPrefix(mc.Path, "/") {
		v.addError("metrics.path", "must start with /")
	}
	if mc.Path == sc.HealthPath {
		v.addError("metrics.path", "conflicts with server.healthPath")
	}
}
