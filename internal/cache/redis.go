package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var _ ResultCache = (*redisCache)(nil)

const keyPrefix = "subtitles:result:"

type redisCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed result cache. Entries expire with the
// given TTL so cached refs never outlive artifact retention.
func NewRedisCache(client *goredis.Client, ttl time.Duration) ResultCache {
	return &redisCache{client: client, ttl: ttl}
}

func (r *redisCache) Lookup(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	ref, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis: lookup result: %w", err)
	}
	return ref, true, nil
}

func (r *redisCache) Store(ctx context.Context, key, outputRef string) error {
	if key == "" {
		return nil
	}
	if err := r.client.Set(ctx, keyPrefix+key, outputRef, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: store result: %w", err)
	}
	return nil
}
