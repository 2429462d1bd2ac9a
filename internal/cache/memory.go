package cache

import (
	"bytes"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps page bodies in process for a bounded time.
// Values are copied in and out so callers can mutate what they receive.
type MemoryCache struct {
	pages *gocache.Cache
}

// NewMemoryCache creates a memory cache whose entries live for ttl by default
// and are swept every cleanup interval
func NewMemoryCache(ttl, cleanup time.Duration) *MemoryCache {
	return &MemoryCache{pages: gocache.New(ttl, cleanup)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.pages.Get(key)
	if !ok {
		return nil, false
	}
	body, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return bytes.Clone(body), true
}

// Set stores a copy of value. A zero ttl uses the cache default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.pages.Set(key, bytes.Clone(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.pages.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.pages.Flush()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept
func (c *MemoryCache) Len() int {
	return c.pages.ItemCount()
}
