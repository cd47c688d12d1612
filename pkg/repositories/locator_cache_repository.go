package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocatorCache shares table locator results between processes. Redis
// errors are logged and treated as cache misses; the cache is advisory.
type RedisLocatorCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisLocatorCache creates a cache whose keys are namespaced by prefix.
func NewRedisLocatorCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocatorCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocatorCache{
		client: client,
		ttl:    ttl,
		prefix: "nlsql:locator:",
		logger: logger.Named("locator-cache"),
	}
}

// Get returns the cached table name for key.
func (c *RedisLocatorCache) Get(ctx context.Context, key string) (string, bool) {
	table, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Locator cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return table, true
}

// Set stores table under key with the configured TTL.
func (c *RedisLocatorCache) Set(ctx context.Context, key, table string) {
	if err := c.client.Set(ctx, c.prefix+key, table, c.ttl).Err(); err != nil {
		c.logger.Warn("Locator cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key.
func (c *RedisLocatorCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn("Locator cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
