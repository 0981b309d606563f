// Package services provides technical concerns behind interfaces: caching and identity token verification
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
)

// CacheService stores opaque byte payloads under string keys with a TTL.
// Get reports a miss as (nil, false, nil).
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// RedisCache implements CacheService on a shared Redis client
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	bs, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return bs, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// MemoryCache implements CacheService in process with freecache.
// TTLs are rounded up to whole seconds.
type MemoryCache struct {
	cache *freecache.Cache
}

// NewMemoryCache allocates sizeMB megabytes; freecache enforces a 512KB minimum
func NewMemoryCache(sizeMB int) *MemoryCache {
	if sizeMB <= 0 {
		sizeMB = 1
	}
	return &MemoryCache{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	secs := int((ttl + time.Second - 1) / time.Second)
	if ttl <= 0 {
		secs = 0
	}
	return c.cache.Set([]byte(key), value, secs)
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Del([]byte(key))
	return nil
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

// NoopCache never stores anything
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (NoopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoopCache) Delete(context.Context, string) error { return nil }
func (NoopCache) Ping(context.Context) error { return nil }
