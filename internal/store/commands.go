package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CommandRecord is a row of the command (undo) log. Data holds the
// command's JSON payload including its snapshot.
type CommandRecord struct {
	ID         string
	UserID     int64
	Kind       string
	State      string
	Title      string
	Data       []byte
	CreatedAt  time.Time
	ExecutedAt *time.Time
	UndoneAt   *time.Time
}

// SaveCommand inserts rec or replaces the row with the same id.
func (tx *Tx) SaveCommand(ctx context.Context, rec CommandRecord) error {
	if rec.ID == "" {
		return errors.New("save command: id is empty")
	}

	_, err := tx.exec(ctx, "save command", `
		INSERT INTO commands (id, user_id, kind, state, title, data, created_at, executed_at, undone_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			title = excluded.title,
			data = excluded.data,
			executed_at = excluded.executed_at,
			undone_at = excluded.undone_at`,
		rec.ID, rec.UserID, rec.Kind, rec.State, rec.Title, string(rec.Data),
		rec.CreatedAt.Unix(), unixOrNil(rec.ExecutedAt), unixOrNil(rec.UndoneAt))

	return err
}

// LoadCommand returns the command whose id equals idOrPrefix or, failing
// that, the single command whose id starts with it.
func (r reader) LoadCommand(ctx context.Context, idOrPrefix string) (CommandRecord, error) {
	idOrPrefix = strings.ToLower(strings.TrimSpace(idOrPrefix))
	if idOrPrefix == "" {
		return CommandRecord{}, fmt.Errorf("load command: %w: empty id", ErrCommandNotFound)
	}

	recs, err := r.queryCommands(ctx, `
		WHERE id = ? OR id LIKE ? ESCAPE '\'
		ORDER BY id = ? DESC, id
		LIMIT 2`, idOrPrefix, escapeLike(idOrPrefix)+"%", idOrPrefix)
	if err != nil {
		return CommandRecord{}, fmt.Errorf("load command: %w", err)
	}

	switch {
	case len(recs) == 0:
		return CommandRecord{}, fmt.Errorf("%w: %s", ErrCommandNotFound, idOrPrefix)
	case recs[0].ID == idOrPrefix || len(recs) == 1:
		return recs[0], nil
	default:
		return CommandRecord{}, fmt.Errorf("%w: %s", ErrAmbiguousCommand, idOrPrefix)
	}
}

// RecentCommands returns the user's newest commands first.
func (r reader) RecentCommands(ctx context.Context, userID int64, limit int) ([]CommandRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	recs, err := r.queryCommands(ctx, `
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent commands: %w", err)
	}

	return recs, nil
}

func (r reader) queryCommands(ctx context.Context, where string, args ...any) ([]CommandRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, kind, state, title, data, created_at, executed_at, undone_at
		FROM commands `+where, args...)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var recs []CommandRecord

	for rows.Next() {
		var (
			rec        CommandRecord
			data       string
			createdAt  int64
			executedAt sql.NullInt64
			undoneAt   sql.NullInt64
		)

		err = rows.Scan(&rec.ID, &rec.UserID, &rec.Kind, &rec.State, &rec.Title, &data,
			&createdAt, &executedAt, &undoneAt)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec.Data = []byte(data)
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		rec.ExecutedAt = nullTimePtr(executedAt)
		rec.UndoneAt = nullTimePtr(undoneAt)

		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.Unix()
}
