// Package cache provides the link cache used by the router.
//
// Two backends implement Cache:
//
//   - An in-memory LRU cache with a background expiry sweep
//   - A Redis cache, standalone or through Sentinel, shared by several
//     router processes
//
// Operations are traced with OpenTelemetry and counted in Prometheus
// metrics labelled by backend.
//
// # Example Usage
//
//	c, err := cache.New(cache.Config{
//	    Type:       cache.TypeMemory,
//	    TTL:        5 * time.Minute,
//	    MaxEntries: 10000,
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	r := router.New(router.WithLinkCache(c, 5*time.Minute))
//
// # Thread Safety
//
// All cache implementations are safe for concurrent use.
package cache
