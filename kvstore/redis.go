package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the reference Store backend: a thin wrapper over
// redis/go-redis/v9, grounded in the same driver the Haseeb1399-RateLimitX402
// example uses for its rate-limit backend. original_source's RedisConfigStore
// wraps Upstash's REST client the same way — get-or-absent, no retries.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a RedisStore from a connection URL (redis:// or
// rediss://) and an auth token, matching the {url, token} shape returned by
// the bootstrap credential endpoint (spec.md §6).
func NewRedisStore(url, token string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
