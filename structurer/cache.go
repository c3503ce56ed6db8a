package structurer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// CacheStats describes cache contents.
type CacheStats struct {
	Size int      `json:"cache_size"`
	Keys []string `json:"cache_keys"`
}

// Cache stores AI results by key. Values are JSON.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (CacheStats, error)
}

// CacheKey is kind + ":" + the SHA-256 of parts.
func CacheKey(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is the default Cache. It is unbounded and lives as long as
// the process.
type MemoryCache struct {
	mu    sync.RWMutex
	order []string
	items map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = value
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	c.order, c.items = nil, make(map[string][]byte)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Stats(context.Context) (CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Size: len(c.order), Keys: append([]string{}, c.order...)}, nil
}
