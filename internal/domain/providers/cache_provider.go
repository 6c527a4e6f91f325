package providers

import (
	"context"
	"time"
)

// CacheProvider stores short-lived derived values such as query
// classification verdicts. Get on a missing or expired key returns a
// NOT_FOUND AppError; callers treat any Get error as a miss.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl keeps the value until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
