package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Options bound the size and lifetime of cached responses
type Options struct {
	// TTL of zero keeps entries until they are evicted or deleted
	TTL time.Duration
	// MaxEntries of zero leaves the memory cache unbounded
	MaxEntries  int
	CleanupFreq time.Duration
}

func checksum(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func expired(createdAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(createdAt) >= ttl
}

func cleanupInterval(freq time.Duration) time.Duration {
	if freq <= 0 {
		return time.Hour
	}
	return freq
}
