package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// Redis circuit breaker defaults.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 30 * time.Second
)

const breakerName = "link-cache-redis"

// newRedisBreaker trips after threshold consecutive failed operations and
// stays open for timeout. Misses and caller cancellations are not failures.
func newRedisBreaker(rc RedisConfig, logger observability.Logger) *gobreaker.CircuitBreaker {
	threshold := rc.BreakerThreshold
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	timeout := rc.BreakerTimeout
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) //nolint:gosec // threshold is positive
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, redis.Nil) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			GetCacheMetrics().recordBreakerTransition(from.String(), to.String())
		},
	})
}

// isBreakerRejection reports whether err came from an open breaker.
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
