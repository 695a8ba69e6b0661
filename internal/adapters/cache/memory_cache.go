package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
)

// MemoryCache is an in-memory implementation of the CacheRepository interface
// backed by an LRU with optional entry expiry
type MemoryCache struct {
	entries     *expirable.LRU[string, *core.CachedResponse]
	mu          sync.Mutex
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(logger *zap.Logger, opts Options) *MemoryCache {
	cache := &MemoryCache{
		logger:      logger,
		ttl:         opts.TTL,
		cleanupFreq: cleanupInterval(opts.CleanupFreq),
		stopCh:      make(chan struct{}),
	}
	cache.entries = expirable.NewLRU[string, *core.CachedResponse](opts.MaxEntries, cache.onEvict, opts.TTL)

	go cache.startCleanupTask()

	return cache
}

func (c *MemoryCache) onEvict(key string, _ *core.CachedResponse) {
	c.logger.Debug("Cache entry evicted", zap.String("key", key))
}

// Get retrieves a cached response and bumps its hit count
func (c *MemoryCache) Get(ctx context.Context, key string) (*core.CachedResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, core.ErrCacheMiss
	}
	if entry.Checksum != checksum(entry.Value) {
		return nil, core.ErrCacheCorrupt
	}

	entry.HitCount++
	out := *entry
	return &out, nil
}

// Put stores a response, replacing any previous entry for the key
func (c *MemoryCache) Put(ctx context.Context, entry *core.CachedResponse) error {
	stored := *entry
	stored.Checksum = checksum(stored.Value)
	stored.HitCount = 0
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(stored.Key, &stored)
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Remove(key)
	return nil
}

// Len returns the number of entries currently held
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	if c.ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiredCount := 0
	for _, key := range c.entries.Keys() {
		if _, ok := c.entries.Peek(key); !ok {
			c.entries.Remove(key)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and drops all entries
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.entries.Purge()
	})
}
