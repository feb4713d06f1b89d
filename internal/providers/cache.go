package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 24 * time.Hour

// Cache stores recent lookup results. Misses return ok=false, never
// an error surfaced to the caller.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string)
}

func newCache(cfg Config) (Cache, error) {
	switch cfg.CacheMode {
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("providers: redis cache requires an address")
		}
		return NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.CacheTTL), nil
	case "memory":
		return NewMemoryCache(cfg.CacheTTL), nil
	case "", "auto":
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			return NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.CacheTTL), nil
		}
		return NewMemoryCache(cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("providers: unknown cache mode %q", cfg.CacheMode)
	}
}

// Cached wraps a Locator with a result cache keyed on location code
// and language.
type Cached struct {
	inner Locator
	cache Cache
}

func NewCached(inner Locator, cache Cache) *Cached {
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) Lookup(ctx context.Context, locationCode, language string) (string, error) {
	key := locationCode + ":" + language
	if result, ok := c.cache.Get(ctx, key); ok {
		return result, nil
	}
	result, err := c.inner.Lookup(ctx, locationCode, language)
	if err != nil {
		return "", err
	}
	c.cache.Set(ctx, key, result)
	return result, nil
}

// MemoryCache is a TTL map. Expired entries are dropped on read.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expires: time.Now().Add(c.ttl)}
}

const providerKeyPrefix = "providers:"

// RedisCache shares lookup results across instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, providerKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		slog.Warn("provider cache read failed", "error", err)
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, providerKeyPrefix+key, value, c.ttl).Err(); err != nil {
		slog.Warn("provider cache write failed", "error", err)
	}
}
