package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
)

// MySQLCache is a MySQL implementation of the CacheRepository interface
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, opts Options) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS response_cache (
			cache_key CHAR(64) PRIMARY KEY,
			tier VARCHAR(16) NOT NULL,
			value MEDIUMTEXT NOT NULL,
			checksum CHAR(64) NOT NULL,
			hit_count INT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			INDEX idx_created_at (created_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		ttl:         opts.TTL,
		cleanupFreq: cleanupInterval(opts.CleanupFreq),
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache, nil
}

// Get retrieves a cached response and bumps its hit count
func (c *MySQLCache) Get(ctx context.Context, key string) (*core.CachedResponse, error) {
	entry, err := scanEntry(c.db.QueryRowContext(ctx, `
		SELECT cache_key, tier, value, checksum, hit_count, created_at
		FROM response_cache
		WHERE cache_key = ?
	`, key))
	if err != nil {
		return nil, err
	}
	if expired(entry.CreatedAt, c.ttl, time.Now()) {
		return nil, core.ErrCacheMiss
	}
	if entry.Checksum != checksum(entry.Value) {
		return nil, core.ErrCacheCorrupt
	}

	if _, err := c.db.ExecContext(ctx, `
		UPDATE response_cache SET hit_count = hit_count + 1 WHERE cache_key = ?
	`, key); err != nil {
		return nil, fmt.Errorf("failed to update hit count: %w", err)
	}
	entry.HitCount++
	return entry, nil
}

// Put stores a response, replacing any previous entry for the key
func (c *MySQLCache) Put(ctx context.Context, entry *core.CachedResponse) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO response_cache (cache_key, tier, value, checksum, hit_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON DUPLICATE KEY UPDATE
			tier = VALUES(tier),
			value = VALUES(value),
			checksum = VALUES(checksum),
			hit_count = 0,
			created_at = VALUES(created_at)
	`, entry.Key, string(entry.Tier), entry.Value, checksum(entry.Value), createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *MySQLCache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM response_cache
		WHERE cache_key = ?
	`, key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	if c.ttl <= 0 {
		return nil
	}

	result, err := c.db.ExecContext(ctx, `
		DELETE FROM response_cache
		WHERE created_at <= ?
	`, time.Now().Add(-c.ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MySQLCache) startCleanupTask() {
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

// Stop stops the background cleanup task and closes the database connection
func (c *MySQLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close MySQL database", zap.Error(err))
		}
	})
}
