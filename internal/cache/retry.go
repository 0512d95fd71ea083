package cache

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

// retryPolicy bounds the retries of a Redis operation.
type retryPolicy struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	jitterFactor   float64
}

var redisRetryPolicy = retryPolicy{
	maxRetries:     3,
	initialBackoff: 100 * time.Millisecond,
	maxBackoff:     2 * time.Second,
	jitterFactor:   0.25,
}

// isRetryableRedisError reports whether err is a transport failure.
func isRetryableRedisError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, redis.Nil) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// do runs fn until it succeeds, returns a non-retryable error, or the
// retries are exhausted. onRetry is called before each retry.
func (p retryPolicy) do(ctx context.Context, fn func() error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = fn(); err == nil || !isRetryableRedisError(err) {
			return err
		}
		if attempt == p.maxRetries {
			break
		}

		if onRetry != nil {
			onRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	return err
}

// backoff returns the exponential delay before retry attempt+1.
func (p retryPolicy) backoff(attempt int) time.Duration {
	backoff := float64(p.initialBackoff) * math.Pow(2, float64(attempt))
	//nolint:gosec // G404: jitter for retry timing is not security-sensitive
	backoff += backoff * p.jitterFactor * rand.Float64()
	if backoff > float64(p.maxBackoff) {
		backoff = float64(p.maxBackoff)
	}
	return time.Duration(backoff)
}

// applyTTLJitter varies ttl by up to ±jitterFactor.
func applyTTLJitter(ttl time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 || ttl <= 0 {
		return ttl
	}
	if jitterFactor > 1.0 {
		jitterFactor = 1.0
	}
	//nolint:gosec // G404: TTL jitter does not require cryptographic randomness
	jitter := time.Duration(float64(ttl) * jitterFactor * (2*rand.Float64() - 1))
	if result := ttl + jitter; result > 0 {
		return result
	}
	return ttl
}
