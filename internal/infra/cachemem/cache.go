package cachemem

import (
	"context"
	"sync"
	"time"

	"vouchd/internal/domain"
	"vouchd/internal/usecase"
)

// Cache is a process-local reputation cache for single-node deployments.
// Entries expire lazily on read.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	stats     domain.ReputationStats
	expiresAt time.Time
	hasExpiry bool
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.ReputationStats, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.hasExpiry && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	stats := entry.stats
	return &stats, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, stats domain.ReputationStats, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{stats: stats}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

var _ usecase.ReputationCache = (*Cache)(nil)
