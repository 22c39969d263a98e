package translate

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process [Cache]. Entries older than the TTL are
// misses; a zero TTL keeps entries forever.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	response string
	storedAt time.Time
}

// NewMemoryCache returns an empty cache. now may be nil to use time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}

	return &MemoryCache{ttl: ttl, now: now, entries: make(map[string]memoryEntry)}
}

// Get returns the cached response for key.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}

	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)

		return "", false, nil
	}

	return entry.response, true, nil
}

// Set stores response under key.
func (c *MemoryCache) Set(_ context.Context, key, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{response: response, storedAt: c.now()}

	return nil
}
