package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TranslationCache keeps raw model responses keyed by translation cache key.
// Entries older than TTL are treated as missing; a zero TTL keeps them forever.
type TranslationCache struct {
	store *Store
	ttl   time.Duration
}

// NewTranslationCache returns a cache backed by the store's translations table.
func NewTranslationCache(s *Store, ttl time.Duration) *TranslationCache {
	return &TranslationCache{store: s, ttl: ttl}
}

// Get returns the cached response for key.
func (c *TranslationCache) Get(ctx context.Context, key string) (string, bool, error) {
	err := c.store.ready()
	if err != nil {
		return "", false, fmt.Errorf("translation cache: %w", err)
	}

	var (
		response  string
		createdAt int64
	)

	err = c.store.sql.QueryRowContext(ctx,
		"SELECT response, created_at FROM translations WHERE key = ?", key).Scan(&response, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("translation cache: read: %w", err)
	}

	if c.ttl > 0 && c.store.now().Sub(time.Unix(createdAt, 0)) > c.ttl {
		return "", false, nil
	}

	return response, true, nil
}

// Set stores response under key, replacing any previous entry.
func (c *TranslationCache) Set(ctx context.Context, key, response string) error {
	err := c.store.ready()
	if err != nil {
		return fmt.Errorf("translation cache: %w", err)
	}

	_, err = c.store.sql.ExecContext(ctx,
		"INSERT OR REPLACE INTO translations (key, response, created_at) VALUES (?, ?, ?)",
		key, response, c.store.now().Unix())
	if err != nil {
		return fmt.Errorf("translation cache: write: %w", err)
	}

	return nil
}
