// Package cache stores fetched pages so repeated verifications do not hit fact-checking sites again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// PageKey generates a cache key from a URL. Scheme and host case do not change the key.
func PageKey(rawURL string) string {
	normalized := strings.TrimSpace(rawURL)
	if i := strings.Index(normalized, "://"); i > 0 {
		rest := normalized[i+3:]
		host, path, _ := strings.Cut(rest, "/")
		normalized = strings.ToLower(normalized[:i]) + "://" + strings.ToLower(host) + "/" + path
	}
	hash := sha256.Sum256([]byte(normalized))
	return "veritas:v1:" + hex.EncodeToString(hash[:])
}

// New returns a memory cache, layered over a disk cache when dir is set
func New(ttl time.Duration, dir string) Cache {
	if dir == "" {
		return NewMemoryCache(ttl, 2*ttl)
	}
	return NewLayeredCache(ttl, dir, ttl)
}
