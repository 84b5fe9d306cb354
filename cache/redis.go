package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores values in Redis under a key prefix. Every written key is
// also recorded in a tracking set so Flush can remove exactly the keys this
// cache owns without scanning the keyspace.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	keySet string
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisPrefix sets the prefix prepended to every key.
// Default: "railops:cache"
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.prefix = strings.Trim(prefix, ":")
	}
}

// NewRedisCache creates a RedisCache on rdb.
func NewRedisCache(rdb redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		rdb:    rdb,
		prefix: "railops:cache",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.keySet = c.prefix + ":__keys"
	return c
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}

// Get retrieves a value. Redis failures are reported as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set stores a value and records its key for Flush.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	full := c.key(key)

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, full, value, ttl)
	pipe.SAdd(ctx, c.keySet, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", full, err)
	}
	return nil
}

// Delete removes a value and its tracking entry.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	full := c.key(key)

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, full)
	pipe.SRem(ctx, c.keySet, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: redis delete %s: %w", full, err)
	}
	return nil
}

// Flush deletes every tracked key and the tracking set.
func (c *RedisCache) Flush(ctx context.Context) error {
	keys, err := c.rdb.SMembers(ctx, c.keySet).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache: redis flush %s: %w", c.prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.Del(ctx, c.keySet)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: redis flush %s: %w", c.prefix, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

var _ Cache = (*RedisCache)(nil)
