package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

const redisKeyPrefix = "solar:irradiance:"

// RedisCache shares irradiance profiles between service instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. ttl <= 0 keeps entries until evicted by Redis.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached profile for a key.
func (c *RedisCache) Get(ctx context.Context, key string) (solar.IrradianceProfile, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return solar.IrradianceProfile{}, false, nil
	}
	if err != nil {
		return solar.IrradianceProfile{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var p solar.IrradianceProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return solar.IrradianceProfile{}, false, fmt.Errorf("decode cached irradiance %s: %w", key, err)
	}
	return p, true, nil
}

// Set stores a profile with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, profile solar.IrradianceProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
