package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores computed dashboards by filter key.
type Cache interface {
	Get(ctx context.Context, key string) (Dashboard, bool, error)
	Set(ctx context.Context, key string, d Dashboard, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Dashboard, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Dashboard{}, false, nil
	}
	if err != nil {
		return Dashboard{}, false, err
	}
	var d Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		return Dashboard{}, false, err
	}
	return d, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, d Dashboard, ttl time.Duration) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

type memoryEntry struct {
	dashboard Dashboard
	expires   time.Time
}

// MemoryCache is used when no redis address is configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Dashboard, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || (!entry.expires.IsZero() && c.now().After(entry.expires)) {
		return Dashboard{}, false, nil
	}
	return entry.dashboard, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, d Dashboard, ttl time.Duration) error {
	entry := memoryEntry{dashboard: d}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}
