// Package cache holds the Redis-backed snapshot of the active step catalog.
// The catalog changes rarely and is read on every progress call, so a short
// TTL plus explicit invalidation on writes keeps instances consistent enough.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"manasik/internal/registration/models"
)

const activeStepsKey = "catalog:active_steps"

// RedisCatalogCache stores the ordered active-step snapshot as one JSON blob.
type RedisCatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed catalog cache.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisCatalogCache {
	return &RedisCatalogCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot. A missing key or an undecodable payload is
// a miss, not an error.
func (c *RedisCatalogCache) Get(ctx context.Context) ([]*models.Step, bool, error) {
	payload, err := c.client.Get(ctx, activeStepsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var steps []*models.Step
	if err := json.Unmarshal(payload, &steps); err != nil {
		return nil, false, nil
	}
	return steps, true, nil
}

// Set writes the snapshot with the configured TTL.
func (c *RedisCatalogCache) Set(ctx context.Context, steps []*models.Step) error {
	payload, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activeStepsKey, payload, c.ttl).Err()
}

// Invalidate drops the snapshot after a catalog write.
func (c *RedisCatalogCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, activeStepsKey).Err()
}
