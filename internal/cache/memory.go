package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

const (
	cacheTracerName = "avaroute/cache"

	defaultMaxEntries = 10000
	cleanupInterval   = time.Minute
)

// memoryCache implements an in-memory LRU cache.
type memoryCache struct {
	logger     observability.Logger
	maxEntries int
	defaultTTL time.Duration

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List

	hits   int64
	misses int64

	stopCh    chan struct{}
	closeOnce sync.Once
}

type memoryCacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryCacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func newMemoryCache(cfg Config, logger observability.Logger) *memoryCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	c := &memoryCache{
		logger:     logger,
		maxEntries: maxEntries,
		defaultTTL: cfg.TTL,
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
		stopCh:     make(chan struct{}),
	}

	go c.cleanupLoop()

	logger.Info("memory cache initialized",
		observability.Int("maxEntries", maxEntries),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c
}

// startOp starts the span and timer of an operation. The returned
// function ends both.
func startOp(ctx context.Context, backend, op, key string, kind trace.SpanKind) (context.Context, trace.Span, func()) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache."+op,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("cache.backend", backend),
			attribute.String("cache.key", key),
		),
	)
	start := time.Now()
	return ctx, span, func() {
		GetCacheMetrics().observe(backend, op, start)
		span.End()
	}
}

// Get retrieves a value from the cache.
func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, span, end := startOp(ctx, TypeMemory, "get", key, trace.SpanKindInternal)
	defer end()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok && elem.Value.(*memoryCacheEntry).expired(time.Now()) {
		c.removeElement(elem)
		ok = false
	}
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		GetCacheMetrics().recordLookup(TypeMemory, false)
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}

	c.eviction.MoveToFront(elem)
	atomic.AddInt64(&c.hits, 1)
	GetCacheMetrics().recordLookup(TypeMemory, true)
	span.SetAttributes(attribute.Bool("cache.hit", true))

	return elem.Value.(*memoryCacheEntry).value, nil
}

// Set stores a value in the cache.
func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, _, end := startOp(ctx, TypeMemory, "set", key, trace.SpanKindInternal)
	defer end()

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	entry := &memoryCacheEntry{key: key, value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value = entry
		c.eviction.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.eviction.PushFront(entry)
	for c.eviction.Len() > c.maxEntries {
		c.evictOldest()
	}
	GetCacheMetrics().setEntries(TypeMemory, c.eviction.Len())

	return nil
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(ctx context.Context, key string) error {
	_, _, end := startOp(ctx, TypeMemory, "delete", key, trace.SpanKindInternal)
	defer end()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Exists checks if a live key exists in the cache.
func (c *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, span, end := startOp(ctx, TypeMemory, "exists", key, trace.SpanKindInternal)
	defer end()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok && elem.Value.(*memoryCacheEntry).expired(time.Now()) {
		c.removeElement(elem)
		ok = false
	}
	span.SetAttributes(attribute.Bool("cache.exists", ok))
	return ok, nil
}

// Close stops the cleanup goroutine and drops all entries.
func (c *memoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)

		c.mu.Lock()
		c.items = make(map[string]*list.Element)
		c.eviction.Init()
		c.mu.Unlock()

		c.logger.Info("memory cache closed")
	})
	return nil
}

// Stats returns cache statistics.
func (c *memoryCache) Stats() CacheStats {
	c.mu.Lock()
	size := int64(c.eviction.Len())
	c.mu.Unlock()

	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Size:   size,
	}
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *memoryCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		GetCacheMetrics().recordEviction(TypeMemory)
	}
}

// removeElement must be called with lock held.
func (c *memoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	delete(c.items, elem.Value.(*memoryCacheEntry).key)
}

func (c *memoryCache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup removes expired entries.
func (c *memoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryCacheEntry).expired(now) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}

	if removed > 0 {
		c.logger.Debug("cache cleanup completed", observability.Int("removed", removed))
	}
}
