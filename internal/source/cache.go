package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"recycling-bins/internal/models"

	"github.com/bradfitz/gomemcache/memcache"
)

// Cache stores geocoding results between lookups.
type Cache interface {
	Get(ctx context.Context, key string) (models.Coordinates, bool, error)
	Set(ctx context.Context, key string, c models.Coordinates) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]models.Coordinates
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]models.Coordinates)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (models.Coordinates, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, v models.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = v
	return nil
}

// MemcacheCache shares geocoding results across collector runs.
type MemcacheCache struct {
	client *memcache.Client
	ttl    time.Duration
}

func NewMemcacheCache(addr string, ttl time.Duration) *MemcacheCache {
	client := memcache.New(addr)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheCache{client: client, ttl: ttl}
}

// memcacheKey hashes the lookup key; memcache keys cannot hold spaces and Hebrew
// addresses easily exceed the length limit.
func memcacheKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return "geocode:" + hex.EncodeToString(sum[:])
}

// memcacheExpiration converts ttl to memcached's expiration field, which reads values
// above 30 days as a unix timestamp.
func memcacheExpiration(ttl time.Duration, now time.Time) int32 {
	const maxRelative = 30 * 24 * time.Hour
	if ttl > maxRelative {
		return int32(now.Add(ttl).Unix())
	}
	return int32(ttl / time.Second)
}

func (c *MemcacheCache) Get(_ context.Context, key string) (models.Coordinates, bool, error) {
	var v models.Coordinates
	item, err := c.client.Get(memcacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("cache: failed to get %q: %w", key, err)
	}
	if err := json.Unmarshal(item.Value, &v); err != nil {
		return v, false, fmt.Errorf("cache: corrupt entry for %q: %w", key, err)
	}
	return v, true, nil
}

func (c *MemcacheCache) Set(_ context.Context, key string, v models.Coordinates) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: failed to encode %q: %w", key, err)
	}
	err = c.client.Set(&memcache.Item{
		Key:        memcacheKey(key),
		Value:      b,
		Expiration: memcacheExpiration(c.ttl, time.Now()),
	})
	if err != nil {
		return fmt.Errorf("cache: failed to set %q: %w", key, err)
	}
	return nil
}
