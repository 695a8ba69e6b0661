package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
)

// SQLiteCache is a SQLite implementation of the CacheRepository interface
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, opts Options) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS response_cache (
			cache_key TEXT PRIMARY KEY,
			tier TEXT NOT NULL,
			value TEXT NOT NULL,
			checksum TEXT NOT NULL,
			hit_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_response_cache_created_at ON response_cache(created_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
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
func (c *SQLiteCache) Get(ctx context.Context, key string) (*core.CachedResponse, error) {
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
func (c *SQLiteCache) Put(ctx context.Context, entry *core.CachedResponse) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO response_cache (cache_key, tier, value, checksum, hit_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, entry.Key, string(entry.Tier), entry.Value, checksum(entry.Value), createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
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
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
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
func (c *SQLiteCache) startCleanupTask() {
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
func (c *SQLiteCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close SQLite database", zap.Error(err))
		}
	})
}

func scanEntry(row *sql.Row) (*core.CachedResponse, error) {
	var entry core.CachedResponse
	var tier string
	var createdAt int64

	err := row.Scan(&entry.Key, &tier, &entry.Value, &entry.Checksum, &entry.HitCount, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	entry.Tier = core.ModelTier(tier)
	entry.CreatedAt = time.Unix(0, createdAt)
	return &entry, nil
}
