package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// Common cache errors.
var (
	// ErrCacheMiss indicates that the key was not found in the cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheDisabled indicates that caching is disabled.
	ErrCacheDisabled = errors.New("cache disabled")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrCircuitOpen indicates that the backend was skipped after repeated
	// failures.
	ErrCircuitOpen = errors.New("cache circuit open")
)

// Cache backend types.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Cache is the main interface for caching.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns ErrCacheMiss if the key is not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with the given TTL.
	// A TTL of 0 selects the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases the cache resources.
	Close() error
}

// CacheWithStats extends Cache with statistics.
type CacheWithStats interface {
	Cache

	// Stats returns cache statistics.
	Stats() CacheStats
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Config configures a cache backend.
type Config struct {
	// Type is TypeMemory (the default) or TypeRedis.
	Type string

	// TTL is the default entry lifetime. Zero keeps entries until evicted.
	TTL time.Duration

	// MaxEntries bounds the memory cache.
	MaxEntries int

	Redis RedisConfig
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// URL is the standalone server URL, e.g. redis://localhost:6379/0.
	URL string

	// Sentinel mode is used when MasterName is set.
	MasterName       string
	SentinelAddrs    []string
	SentinelPassword string
	Password         string
	DB               int

	KeyPrefix string
	PoolSize  int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// TTLJitter varies TTLs by up to this fraction.
	TTLJitter float64

	// HashKeys stores SHA-256 digests of keys instead of the keys.
	HashKeys bool

	// BreakerThreshold is the number of consecutive failed operations
	// that opens the circuit. BreakerTimeout is how long it stays open.
	// Zero values select the defaults.
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// New creates a cache for cfg.
func New(cfg Config, logger observability.Logger) (Cache, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case TypeMemory, "":
		return newMemoryCache(cfg, logger), nil
	case TypeRedis:
		return newRedisCache(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown cache type %q", ErrInvalidConfig, cfg.Type)
	}
}

// Disabled returns a cache that stores nothing.
func Disabled() Cache {
	return disabledCache{}
}

// disabledCache is a cache that always returns ErrCacheDisabled.
type disabledCache struct{}

func (disabledCache) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheDisabled
}

func (disabledCache) Set(context.Context, string, []byte, time.Duration) error {
	return ErrCacheDisabled
}

func (disabledCache) Delete(context.Context, string) error {
	return ErrCacheDisabled
}

func (disabledCache) Exists(context.Context, string) (bool, error) {
	return false, ErrCacheDisabled
}

func (disabledCache) Close() error {
	return nil
}
