package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/redis/go-redis/v9"
)

const reorderPointKeyPrefix = "reorder_point:"

// ReorderPointCache is a read-through cache in front of the reorder point
// store. It is never the source of truth: every recompute invalidates the
// product's entry, and misses are filled under the product lock.
type ReorderPointCache interface {
	Get(ctx context.Context, productID int64) (*domain.ReorderPoint, bool, error)
	Set(ctx context.Context, rp *domain.ReorderPoint) error
	Invalidate(ctx context.Context, productID int64) error
}

type redisReorderPointCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopReorderPointCache struct{}

// NewReorderPointCache returns a Redis-backed cache, or a no-op one when caching is disabled.
func NewReorderPointCache(cfg config.CacheConfig) (ReorderPointCache, error) {
	if !cfg.Enabled {
		return &noopReorderPointCache{}, nil
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisReorderPointCache(client, cacheTTL(cfg)), nil
}

func NewRedisReorderPointCache(client *redis.Client, ttl time.Duration) ReorderPointCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisReorderPointCache{client: client, ttl: ttl}
}

func NewNoopReorderPointCache() ReorderPointCache {
	return &noopReorderPointCache{}
}

func (c *redisReorderPointCache) Get(ctx context.Context, productID int64) (*domain.ReorderPoint, bool, error) {
	payload, err := c.client.Get(ctx, reorderPointKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var rp domain.ReorderPoint
	if err := json.Unmarshal(payload, &rp); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached reorder point: %w", err)
	}
	return &rp, true, nil
}

func (c *redisReorderPointCache) Set(ctx context.Context, rp *domain.ReorderPoint) error {
	if rp == nil {
		return nil
	}
	payload, err := json.Marshal(rp)
	if err != nil {
		return fmt.Errorf("failed to encode reorder point: %w", err)
	}
	if err := c.client.Set(ctx, reorderPointKey(rp.ProductID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisReorderPointCache) Invalidate(ctx context.Context, productID int64) error {
	if err := c.client.Del(ctx, reorderPointKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (noopReorderPointCache) Get(context.Context, int64) (*domain.ReorderPoint, bool, error) {
	return nil, false, nil
}

func (noopReorderPointCache) Set(context.Context, *domain.ReorderPoint) error { return nil }

func (noopReorderPointCache) Invalidate(context.Context, int64) error { return nil }

func reorderPointKey(productID int64) string {
	return reorderPointKeyPrefix + strconv.FormatInt(productID, 10)
}
