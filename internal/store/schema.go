package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const schemaVersion = 1

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers work
// inside and outside a write transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	// _txlock=immediate takes the SQLite write lock at BEGIN so two writers
	// never both read stale rows and then race to upgrade.
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	err = applyPragmas(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	statements := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA cache_size = -20000",
		"PRAGMA temp_store = MEMORY",
	}

	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}

	return nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, "PRAGMA user_version")

	var version int

	err := row.Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrate txn: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	err = createSchema(ctx, tx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	if err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit migrate txn: %w", err)
	}

	committed = true

	return nil
}

func createSchema(ctx context.Context, tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			full_name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workflows (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE
		)`,
		`CREATE TABLE IF NOT EXISTS stages (
			id INTEGER PRIMARY KEY,
			workflow_id INTEGER NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			name TEXT NOT NULL COLLATE NOCASE,
			position INTEGER NOT NULL DEFAULT 0,
			UNIQUE (workflow_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS collections (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			workflow_id INTEGER REFERENCES workflows(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accesses (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, collection_id)
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS cards (
			id INTEGER PRIMARY KEY,
			collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			creator_id INTEGER NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('considering', 'doing', 'closed')),
			stage_id INTEGER REFERENCES stages(id) ON DELETE SET NULL,
			created_at INTEGER NOT NULL,
			last_active_at INTEGER NOT NULL,
			closed_at INTEGER,
			close_reason TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS assignments (
			card_id INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (card_id, user_id)
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS tags (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE
		)`,
		`CREATE TABLE IF NOT EXISTS taggings (
			card_id INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (card_id, tag_id)
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS commands (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			kind TEXT NOT NULL,
			state TEXT NOT NULL,
			title TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			executed_at INTEGER,
			undone_at INTEGER
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS translations (
			key TEXT PRIMARY KEY,
			response TEXT NOT NULL,
			created_at INTEGER NOT NULL
		) WITHOUT ROWID`,
		"CREATE INDEX IF NOT EXISTS idx_cards_collection ON cards(collection_id)",
		"CREATE INDEX IF NOT EXISTS idx_cards_status ON cards(status, last_active_at)",
		"CREATE INDEX IF NOT EXISTS idx_assignments_user ON assignments(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_taggings_tag ON taggings(tag_id)",
		"CREATE INDEX IF NOT EXISTS idx_commands_user ON commands(user_id, created_at)",
	}

	for _, stmt := range statements {
		_, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply schema statement %q: %w", stmt, err)
		}
	}

	return nil
}
