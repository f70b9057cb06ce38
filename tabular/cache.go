package tabular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
)

// Cache stores encoded sheet reads.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

// MemoryCache is a size-bounded in-process cache whose entries expire after ttl.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

// CacheStats counts cache lookups since start.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// CachedReader serves sheet reads through a cache keyed by sheet and version token.
// Bumping the token forces a fresh read; failed reads are never cached.
type CachedReader struct {
	store  Store
	cache  Cache
	logger *logrus.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewCachedReader(store Store, cache Cache, logger *logrus.Logger) *CachedReader {
	return &CachedReader{store: store, cache: cache, logger: logger}
}

func (r *CachedReader) Store() Store {
	return r.store
}

func CacheKey(sheet string, token int64) string {
	return fmt.Sprintf("sheet:%s:v%d", sheet, token)
}

func (r *CachedReader) Values(ctx context.Context, sheet string, token int64) ([][]interface{}, error) {
	key := CacheKey(sheet, token)
	if r.cache != nil {
		b, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			config.LogWarn(r.logger, "tabular", "CachedReader.Values", "cache get", key, err)
		}
		if ok {
			var values [][]interface{}
			if err := json.Unmarshal(b, &values); err == nil {
				r.hits.Add(1)
				return values, nil
			}
		}
	}
	r.misses.Add(1)

	values, err := r.store.Values(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if b, err := json.Marshal(values); err == nil {
			if err := r.cache.Set(ctx, key, b); err != nil {
				config.LogWarn(r.logger, "tabular", "CachedReader.Values", "cache set", key, err)
			}
		}
	}
	return values, nil
}

func (r *CachedReader) Stats() CacheStats {
	return CacheStats{Hits: r.hits.Load(), Misses: r.misses.Load()}
}
