// Package store is the SQLite-backed card store: users, collections,
// workflows and their stages, cards with assignments and tags, the command
// (undo) log and the translation cache.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DBFileName is the SQLite database file inside the data directory.
const DBFileName = "cards.sqlite"

const (
	lockFileName       = "write.lock"
	defaultLockTimeout = 10 * time.Second
)

// Store holds the SQLite handle and the cross-process writer lock.
// Reads go straight to the database; writes go through [Store.Begin].
type Store struct {
	reader

	dir         string
	sql         *sql.DB
	locker      *locker
	lockPath    string
	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures [Open].
type Option func(*Store)

// WithClock overrides the clock used for transition timestamps and
// time-window filters.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLockTimeout overrides how long [Store.Begin] waits for the writer lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// Open initializes the SQLite database in dir, creating the schema on first use.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	if ctx == nil {
		return nil, errors.New("open store: context is nil")
	}

	if dir == "" {
		return nil, errors.New("open store: directory is empty")
	}

	dataDir := filepath.Clean(dir)

	err := os.MkdirAll(dataDir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("open store: create data directory: %w", err)
	}

	db, err := openSQLite(ctx, filepath.Join(dataDir, DBFileName))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	version, err := userVersion(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("open store: %w", err)
	}

	switch {
	case version > schemaVersion:
		_ = db.Close()

		return nil, fmt.Errorf("open store: %w (have %d, support %d)", ErrSchemaTooNew, version, schemaVersion)
	case version < schemaVersion:
		err = migrate(ctx, db)
		if err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	s := &Store{
		dir:         dataDir,
		sql:         db,
		locker:      newLocker(),
		lockPath:    filepath.Join(dataDir, lockFileName),
		lockTimeout: defaultLockTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.reader = reader{q: db, now: func() time.Time { return s.now() }}

	return s, nil
}

// Close releases the SQLite handle opened by Open.
func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}

	db := s.sql
	s.sql = nil

	err := db.Close()
	if err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}

	return nil
}

// Dir returns the data directory the store lives in.
func (s *Store) Dir() string {
	return s.dir
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) ready() error {
	if s == nil || s.sql == nil {
		return ErrNotOpen
	}

	return nil
}
