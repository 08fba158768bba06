package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"

	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/metrics"
)

// l1MaxTTL caps how long a two-tier entry may live in process memory.
const l1MaxTTL = 5 * time.Minute

// Cache defines the interface for cache operations
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, found := l.get(key)
	metrics.IncCacheRequest("local", found)
	return val, found
}

func (l *LocalCache) get(key string) ([]byte, bool) {
	v, found := l.cache.Get(key)
	if !found {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// Set stores a value in the local cache
func (l *LocalCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l.cache.Set(key, value, ttl)
	return nil
}

// SetNX sets a value only if the key doesn't exist
func (l *LocalCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	// Add fails when an unexpired entry is present.
	if err := l.cache.Add(key, value, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Delete removes a value from the local cache
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Clear removes all items from the local cache
func (l *LocalCache) Clear(ctx context.Context) error {
	l.cache.Flush()
	return nil
}

// Exists checks if a key exists
func (l *LocalCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found := l.cache.Get(key)
	return found, nil
}

// RedisCache wraps go-redis for distributed caching
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis. Backend errors are logged and reported as a miss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.Warn("Redis cache read failed",
				logging.Field{Key: "key", Value: key},
				logging.Err(err),
			)
		}
		metrics.IncCacheRequest("redis", false)
		return nil, false
	}
	metrics.IncCacheRequest("redis", true)
	return val, true
}

// Set stores a value in Redis
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err()
}

// SetNX sets a value only if the key doesn't exist
func (r *RedisCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.keyPrefix+key, value, ttl).Result()
}

// Delete removes a value from Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// Clear removes all items with the key prefix from Redis
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}

	return nil
}

// Exists checks if a key exists
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.keyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime Redis reports for key
func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, r.keyPrefix+key).Result()
}

// TwoTierCache combines local and Redis cache
type TwoTierCache struct {
	l1 *LocalCache
	l2 *RedisCache
}

// NewTwoTierCache creates a cache with local L1 and Redis L2
func NewTwoTierCache(localTTL, cleanupInterval time.Duration, redisClient *redis.Client, keyPrefix string) *TwoTierCache {
	return &TwoTierCache{
		l1: NewLocalCache(localTTL, cleanupInterval),
		l2: NewRedisCache(redisClient, keyPrefix),
	}
}

// Get checks L1 first, then L2. An L2 hit is copied into L1 without
// outliving the remaining Redis TTL.
func (t *TwoTierCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, found := t.l1.Get(ctx, key); found {
		return val, true
	}

	val, found := t.l2.Get(ctx, key)
	if !found {
		return nil, false
	}

	l1TTL := l1MaxTTL
	if remaining, err := t.l2.TTL(ctx, key); err == nil && remaining > 0 && remaining < l1TTL {
		l1TTL = remaining
	}
	_ = t.l1.Set(ctx, key, val, l1TTL)
	return val, true
}

// Set stores in both L1 and L2
func (t *TwoTierCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.l1.Set(ctx, key, value, capL1(ttl))
}

// SetNX sets a value only if the key doesn't exist in either cache
func (t *TwoTierCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if exists, _ := t.l1.Exists(ctx, key); exists {
		return false, nil
	}

	acquired, err := t.l2.SetNX(ctx, key, value, ttl)
	if err != nil || !acquired {
		return acquired, err
	}

	_ = t.l1.Set(ctx, key, value, capL1(ttl))
	return true, nil
}

// Delete removes from both L1 and L2
func (t *TwoTierCache) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}

// Clear removes all items from both caches
func (t *TwoTierCache) Clear(ctx context.Context) error {
	_ = t.l1.Clear(ctx)
	return t.l2.Clear(ctx)
}

// Exists checks if a key exists in either cache
func (t *TwoTierCache) Exists(ctx context.Context, key string) (bool, error) {
	if exists, _ := t.l1.Exists(ctx, key); exists {
		return true, nil
	}
	return t.l2.Exists(ctx, key)
}

func capL1(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > l1MaxTTL {
		return l1MaxTTL
	}
	return ttl
}
