package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

const redisKeyPrefix = "cigarlens:details:"

// RedisCache shares catalog snapshots between instances. Eviction under memory
// pressure is left to the server's maxmemory-policy (allkeys-lru recommended).
type RedisCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	metrics HitRecorder
	logger  *zap.Logger
}

// NewRedisCache connects to redisURL and verifies the connection
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration, metrics HitRecorder, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisCacheWithClient(client, ttl, metrics, logger), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client redis.UniversalClient, ttl time.Duration, metrics HitRecorder, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger.Named("redis-cache"),
	}
}

// Get reads and refreshes the TTL of a snapshot. Redis errors read as misses.
func (c *RedisCache) Get(ctx context.Context, brand, name string) (*domain.CatalogEntry, bool) {
	key := redisKeyPrefix + domain.CacheKey(brand, name)

	data, err := c.client.GetEx(ctx, key, c.ttl).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		c.miss()
		return nil, false
	}

	var entry domain.CatalogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		c.miss()
		return nil, false
	}

	c.hit()
	return &entry, true
}

// Set stores a snapshot with the cache TTL
func (c *RedisCache) Set(ctx context.Context, brand, name string, entry *domain.CatalogEntry) {
	if entry == nil {
		return
	}
	key := redisKeyPrefix + domain.CacheKey(brand, name)

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("cannot encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear deletes one key, or every snapshot key when brand and name are empty
func (c *RedisCache) Clear(ctx context.Context, brand, name string) {
	if brand != "" || name != "" {
		if err := c.client.Del(ctx, redisKeyPrefix+domain.CacheKey(brand, name)).Err(); err != nil {
			c.logger.Warn("redis delete failed", zap.Error(err))
		}
		return
	}

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("redis delete failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis scan failed", zap.Error(err))
	}
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHit()
	}
}

func (c *RedisCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMiss()
	}
}
