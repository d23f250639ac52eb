// Package cache stores rendered display views of published catalog entities.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openkpis/catalog-engine/pkg/logging"
	"github.com/openkpis/catalog-engine/pkg/retry"
)

const keyPrefix = "catalog:display:"

// DisplayKey is the cache key for the display view of kind/slug.
func DisplayKey(kind, slug string) string {
	return keyPrefix + kind + ":" + slug
}

// DisplayCache is a JSON value cache with per-entry TTL.
type DisplayCache interface {
	// Get decodes the cached value for key into dst. It reports false on a miss.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores v under key for ttl.
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// NewDisplayCache returns a Redis-backed cache, or a no-op cache when client is nil.
func NewDisplayCache(client *redis.Client, logger *zap.Logger) DisplayCache {
	if client == nil {
		return NoopCache{}
	}
	return &redisCache{client: client, logger: logger}
}

type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

var _ DisplayCache = (*redisCache)(nil)

func (c *redisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		// a stale shape from an older release; drop it and treat as a miss
		c.logger.Warn("Discarding undecodable cache entry",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)))
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return c.client.Set(ctx, key, data, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return c.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// NoopCache never stores anything. Used when Redis is not configured.
type NoopCache struct{}

var _ DisplayCache = NoopCache{}

func (NoopCache) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (NoopCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (NoopCache) Delete(context.Context, ...string) error               { return nil }
