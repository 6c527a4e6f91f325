package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zatekoja/clinicalcore/internal/domain/providers"
	redisclient "github.com/zatekoja/clinicalcore/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/clinicalcore/pkg/errors"
)

// RedisAdapter implements the CacheProvider interface using Redis
type RedisAdapter struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisAdapter creates a new Redis cache adapter
func NewRedisAdapter(client *redisclient.Client) providers.CacheProvider {
	return NewRedisAdapterWithClient(client.Client(), "")
}

// NewRedisAdapterWithClient creates a cache adapter over any go-redis client.
// Every key is stored under keyPrefix.
func NewRedisAdapterWithClient(client redis.UniversalClient, keyPrefix string) *RedisAdapter {
	return &RedisAdapter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (a *RedisAdapter) key(key string) string {
	return a.keyPrefix + key
}

// Get retrieves a value from cache. A missing key is a NOT_FOUND error.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.Get(ctx, a.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("key not found: %s", key))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	return result, nil
}

// Set stores a value in cache. A zero ttl means no expiry.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := a.client.Set(ctx, a.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Exists checks if a key exists in cache
func (a *RedisAdapter) Exists(ctx context.Context, key string) (bool, error) {
	result, err := a.client.Exists(ctx, a.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence in cache: %w", err)
	}
	return result > 0, nil
}
