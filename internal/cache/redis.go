package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

const defaultKeyPrefix = "avaroute:"

// redisCache implements a Redis-based cache shared between processes.
type redisCache struct {
	logger     observability.Logger
	client     redis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration
	ttlJitter  float64
	hashKeys   bool
	retries    retryPolicy
	breaker    *gobreaker.CircuitBreaker

	hits   int64
	misses int64
}

func newRedisCache(cfg Config, logger observability.Logger) (*redisCache, error) {
	rc := cfg.Redis

	var client redis.UniversalClient
	switch {
	case rc.MasterName != "":
		if len(rc.SentinelAddrs) == 0 {
			return nil, fmt.Errorf("%w: at least one sentinel address is required", ErrInvalidConfig)
		}
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       rc.MasterName,
			SentinelAddrs:    rc.SentinelAddrs,
			SentinelPassword: rc.SentinelPassword,
			Password:         rc.Password,
			DB:               rc.DB,
			PoolSize:         rc.PoolSize,
			DialTimeout:      rc.ConnectTimeout,
			ReadTimeout:      rc.ReadTimeout,
			WriteTimeout:     rc.WriteTimeout,
		})

	case rc.URL != "":
		opts, err := redis.ParseURL(rc.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid redis URL: %w", ErrInvalidConfig, err)
		}
		if rc.Password != "" {
			opts.Password = rc.Password
		}
		if rc.PoolSize > 0 {
			opts.PoolSize = rc.PoolSize
		}
		if rc.ConnectTimeout > 0 {
			opts.DialTimeout = rc.ConnectTimeout
		}
		if rc.ReadTimeout > 0 {
			opts.ReadTimeout = rc.ReadTimeout
		}
		if rc.WriteTimeout > 0 {
			opts.WriteTimeout = rc.WriteTimeout
		}
		client = redis.NewClient(opts)

	default:
		return nil, fmt.Errorf("%w: redis URL or sentinel master name is required", ErrInvalidConfig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	c := &redisCache{
		logger:     logger,
		client:     client,
		keyPrefix:  rc.KeyPrefix,
		defaultTTL: cfg.TTL,
		ttlJitter:  rc.TTLJitter,
		hashKeys:   rc.HashKeys,
		retries:    redisRetryPolicy,
		breaker:    newRedisBreaker(rc, logger),
	}
	if c.keyPrefix == "" {
		c.keyPrefix = defaultKeyPrefix
	}

	logger.Info("redis cache initialized",
		observability.String("keyPrefix", c.keyPrefix),
		observability.Bool("sentinel", rc.MasterName != ""),
		observability.Duration("defaultTTL", c.defaultTTL),
		observability.Bool("hashKeys", c.hashKeys))

	return c, nil
}

// resolveKey applies the key prefix and optional hashing.
func (c *redisCache) resolveKey(key string) string {
	if c.hashKeys {
		return c.keyPrefix + HashKey(key)
	}
	return c.keyPrefix + key
}

// retry runs fn with the retry policy behind the circuit breaker. While the
// circuit is open fn is not called and ErrCircuitOpen is returned.
func (c *redisCache) retry(ctx context.Context, op, key string, fn func() error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.retries.do(ctx, fn, func(attempt int, err error) {
			c.logger.Debug("retrying redis "+op,
				observability.String("key", key),
				observability.Int("attempt", attempt),
				observability.Error(err))
		})
	})
	if isBreakerRejection(err) {
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return err
}

func (c *redisCache) fail(span trace.Span, op, key string, err error) {
	GetCacheMetrics().recordFailure(TypeRedis, op)
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
	if errors.Is(err, ErrCircuitOpen) {
		c.logger.Debug("redis "+op+" skipped",
			observability.String("key", key),
			observability.Error(err))
		return
	}
	c.logger.Error("redis "+op+" failed",
		observability.String("key", key),
		observability.Error(err))
}

// Get retrieves a value from the cache.
func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span, end := startOp(ctx, TypeRedis, "get", key, trace.SpanKindClient)
	defer end()

	fullKey := c.resolveKey(key)
	var result []byte
	err := c.retry(ctx, "get", key, func() error {
		val, err := c.client.Get(ctx, fullKey).Bytes()
		result = val
		return err
	})

	switch {
	case err == nil:
		atomic.AddInt64(&c.hits, 1)
		GetCacheMetrics().recordLookup(TypeRedis, true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return result, nil
	case errors.Is(err, redis.Nil):
		atomic.AddInt64(&c.misses, 1)
		GetCacheMetrics().recordLookup(TypeRedis, false)
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	default:
		c.fail(span, "get", key, err)
		return nil, err
	}
}

// Set stores a value in the cache.
func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span, end := startOp(ctx, TypeRedis, "set", key, trace.SpanKindClient)
	defer end()

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	ttl = applyTTLJitter(ttl, c.ttlJitter)

	fullKey := c.resolveKey(key)
	err := c.retry(ctx, "set", key, func() error {
		return c.client.Set(ctx, fullKey, value, ttl).Err()
	})
	if err != nil {
		c.fail(span, "set", key, err)
	}
	return err
}

// Delete removes a value from the cache.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	ctx, span, end := startOp(ctx, TypeRedis, "delete", key, trace.SpanKindClient)
	defer end()

	fullKey := c.resolveKey(key)
	err := c.retry(ctx, "delete", key, func() error {
		return c.client.Del(ctx, fullKey).Err()
	})
	if err != nil {
		c.fail(span, "delete", key, err)
	}
	return err
}

// Exists checks if a key exists in the cache.
func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span, end := startOp(ctx, TypeRedis, "exists", key, trace.SpanKindClient)
	defer end()

	fullKey := c.resolveKey(key)
	var n int64
	err := c.retry(ctx, "exists", key, func() error {
		var err error
		n, err = c.client.Exists(ctx, fullKey).Result()
		return err
	})
	if err != nil {
		c.fail(span, "exists", key, err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("cache.exists", n > 0))
	return n > 0, nil
}

// Close closes the Redis connection.
func (c *redisCache) Close() error {
	c.logger.Info("redis cache closing")
	return c.client.Close()
}

// Stats returns cache statistics.
func (c *redisCache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}
