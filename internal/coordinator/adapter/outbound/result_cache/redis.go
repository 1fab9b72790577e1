package result_cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spaolacci/murmur3"

	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
	"github.com/anvndev/go-distributed-search/internal/coordinator/service"
)

// RedisCache is a short-TTL cache of merged aggregate results. Any Redis
// error degrades to a cache miss; the fan-out is the source of truth.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// Ensure RedisCache implements service.ResultCache.
var _ service.ResultCache = (*RedisCache)(nil)

// New creates a cache on an existing Redis client.
func New(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get looks up a cached aggregate result.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.AggregateResult, bool) {
	payload, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debugw("Result cache read failed", "error", err.Error())
		}
		return nil, false
	}

	var result domain.AggregateResult
	if err := json.Unmarshal(payload, &result); err != nil {
		logger.Debugw("Result cache entry corrupt", "error", err.Error())
		return nil, false
	}
	return &result, true
}

// Set stores a merged result with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, result *domain.AggregateResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(key), payload, c.ttl).Err(); err != nil {
		logger.Debugw("Result cache write failed", "error", err.Error())
	}
}

// cacheKey hashes the canonical search tuple into a fixed-width key.
func cacheKey(key string) string {
	h1, h2 := murmur3.Sum128([]byte(key))
	return fmt.Sprintf("search:%016x%016x", h1, h2)
}
