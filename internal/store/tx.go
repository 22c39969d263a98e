package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calvinalkan/agent-cards/internal/filter"
)

// Tx is a write transaction. The zero value is not usable; call
// [Store.Begin] to create one.
//
// A Tx holds the store's exclusive writer lock for its lifetime, so write
// transactions from any process run one after another. Callers must call
// either [Tx.Commit] or [Tx.Rollback] to release the lock; Rollback after
// Commit is a no-op, so `defer tx.Rollback()` is the usual pattern.
type Tx struct {
	reader

	sql    *sql.Tx
	lock   *fileLock
	now    func() time.Time
	closed bool
}

// Begin acquires the writer lock and opens a SQLite transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	if ctx == nil {
		return nil, errors.New("begin: context is nil")
	}

	err := s.ready()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	lock, err := s.locker.lock(ctx, s.lockPath, s.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	sqlTx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		_ = lock.Close()

		return nil, fmt.Errorf("begin: %w", err)
	}

	return &Tx{
		reader: reader{q: sqlTx, now: s.now},
		sql:    sqlTx,
		lock:   lock,
		now:    s.now,
	}, nil
}

// Commit commits the transaction and releases the writer lock.
func (tx *Tx) Commit() error {
	if tx == nil || tx.closed {
		return fmt.Errorf("commit: %w", ErrTxClosed)
	}

	tx.closed = true

	commitErr := tx.sql.Commit()
	unlockErr := tx.lock.Close()

	if commitErr != nil {
		return fmt.Errorf("commit: %w", commitErr)
	}

	if unlockErr != nil {
		return fmt.Errorf("commit: release lock: %w", unlockErr)
	}

	return nil
}

// Rollback discards the transaction and releases the writer lock. It is safe
// to call after Commit.
func (tx *Tx) Rollback() error {
	if tx == nil || tx.closed {
		return nil
	}

	tx.closed = true

	rollbackErr := tx.sql.Rollback()
	unlockErr := tx.lock.Close()

	return errors.Join(rollbackErr, unlockErr)
}

func (tx *Tx) exec(ctx context.Context, op string, query string, args ...any) (int64, error) {
	if tx == nil || tx.closed {
		return 0, fmt.Errorf("%s: %w", op, ErrTxClosed)
	}

	res, err := tx.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}

	return n, nil
}

func (tx *Tx) updateCard(ctx context.Context, op string, cardID int64, set string, args ...any) error {
	args = append(args, tx.now().Unix(), cardID)

	n, err := tx.exec(ctx, op, "UPDATE cards SET "+set+", last_active_at = ? WHERE id = ?", args...)
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("%s: %w: %d", op, ErrCardNotFound, cardID)
	}

	return nil
}

// Engage moves the card into doing, reopening it if it was closed.
func (tx *Tx) Engage(ctx context.Context, cardID int64) error {
	return tx.updateCard(ctx, "engage", cardID,
		"status = ?, closed_at = NULL, close_reason = NULL", StatusDoing)
}

// Reconsider moves the card back to considering, reopening it if it was closed.
func (tx *Tx) Reconsider(ctx context.Context, cardID int64) error {
	return tx.updateCard(ctx, "reconsider", cardID,
		"status = ?, closed_at = NULL, close_reason = NULL", StatusConsidering)
}

// Close closes the card with an optional reason.
func (tx *Tx) Close(ctx context.Context, cardID int64, reason string) error {
	var reasonArg any
	if reason = strings.TrimSpace(reason); reason != "" {
		reasonArg = reason
	}

	return tx.updateCard(ctx, "close", cardID,
		"status = ?, closed_at = ?, close_reason = ?", StatusClosed, tx.now().Unix(), reasonArg)
}

// ChangeStage moves the card to stage. Compatibility with the card's
// workflow is the caller's concern.
func (tx *Tx) ChangeStage(ctx context.Context, cardID int64, stage Stage) error {
	return tx.updateCard(ctx, "change stage", cardID, "stage_id = ?", stage.ID)
}

// Assign adds the user to the card's assignees. It reports false when the
// user was already assigned.
func (tx *Tx) Assign(ctx context.Context, cardID, userID int64) (bool, error) {
	n, err := tx.exec(ctx, "assign",
		"INSERT OR IGNORE INTO assignments (card_id, user_id) VALUES (?, ?)", cardID, userID)
	if err != nil {
		return false, err
	}

	if n > 0 {
		err = tx.updateCard(ctx, "assign", cardID, "status = status")
	}

	return n > 0, err
}

// Unassign removes the user from the card's assignees.
func (tx *Tx) Unassign(ctx context.Context, cardID, userID int64) error {
	_, err := tx.exec(ctx, "unassign",
		"DELETE FROM assignments WHERE card_id = ? AND user_id = ?", cardID, userID)

	return err
}

// Tag adds the tag (created on demand) to the card. It reports false when
// the card already had the tag.
func (tx *Tx) Tag(ctx context.Context, cardID int64, name string) (bool, error) {
	name = filter.TagName(name)
	if name == "" {
		return false, errors.New("tag: name is empty")
	}

	_, err := tx.exec(ctx, "tag", "INSERT OR IGNORE INTO tags (name) VALUES (?)", name)
	if err != nil {
		return false, err
	}

	n, err := tx.exec(ctx, "tag", `
		INSERT OR IGNORE INTO taggings (card_id, tag_id)
		SELECT ?, id FROM tags WHERE name = ?`, cardID, name)
	if err != nil {
		return false, err
	}

	if n > 0 {
		err = tx.updateCard(ctx, "tag", cardID, "status = status")
	}

	return n > 0, err
}

// Untag removes the tag from the card.
func (tx *Tx) Untag(ctx context.Context, cardID int64, name string) error {
	_, err := tx.exec(ctx, "untag", `
		DELETE FROM taggings
		WHERE card_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`,
		cardID, filter.TagName(name))

	return err
}

// CreateCard inserts a card and returns its id.
func (tx *Tx) CreateCard(ctx context.Context, card NewCard) (int64, error) {
	if tx == nil || tx.closed {
		return 0, fmt.Errorf("create card: %w", ErrTxClosed)
	}

	status := card.Status
	if status == "" {
		status = StatusConsidering
	}

	now := tx.now().Unix()

	res, err := tx.sql.ExecContext(ctx, `
		INSERT INTO cards (collection_id, creator_id, title, description, status, created_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		card.CollectionID, card.CreatorID, card.Title, card.Description, status, now, now)
	if err != nil {
		return 0, fmt.Errorf("create card: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create card: last insert id: %w", err)
	}

	return id, nil
}

// DeleteCard removes the card with its assignments and taggings.
func (tx *Tx) DeleteCard(ctx context.Context, cardID int64) error {
	_, err := tx.exec(ctx, "delete card", "DELETE FROM cards WHERE id = ?", cardID)

	return err
}
