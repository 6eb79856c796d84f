// Package cache provides the Redis-backed lookup cache for QR deep links.
// Stable-ID scans are the one hot read path in the system; the cache keeps
// them off the database.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "deeplink:"

// DeepLinkCache maps stable IDs to natural keys with a TTL.
type DeepLinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis. A zero ttl defaults to one hour.
func New(addr, password string, ttl time.Duration) *DeepLinkCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DeepLinkCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

// Get resolves a stable ID to a natural key. A miss is (_, false, nil).
func (c *DeepLinkCache) Get(ctx context.Context, stableID string) (string, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+stableID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("deeplink cache get: %w", err)
	}
	return val, true, nil
}

// Put records a stable ID -> natural key mapping.
func (c *DeepLinkCache) Put(ctx context.Context, stableID, naturalKey string) error {
	if err := c.client.Set(ctx, keyPrefix+stableID, naturalKey, c.ttl).Err(); err != nil {
		return fmt.Errorf("deeplink cache put: %w", err)
	}
	return nil
}

// Invalidate drops a mapping, e.g. after an item edit reassigns IDs.
func (c *DeepLinkCache) Invalidate(ctx context.Context, stableID string) error {
	if err := c.client.Del(ctx, keyPrefix+stableID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("deeplink cache invalidate: %w", err)
	}
	return nil
}
