package command

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-cards/internal/llm"
	"github.com/calvinalkan/agent-cards/internal/store"
)

// Runner executes and undoes commands. Each call runs in one store write
// transaction: either the action's changes and its log row are committed
// together or nothing is. Read-only actions do their reading before the
// transaction, which then only records them.
type Runner struct {
	store  *store.Store
	chat   llm.Chat
	logger *zap.Logger
}

// NewRunner returns a Runner. chat may be nil, in which case insight
// commands fail with [ErrNoChat]; logger may be nil.
func NewRunner(s *store.Store, chat llm.Chat, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{store: s, chat: chat, logger: logger}
}

// Execute runs a created command and records it in the undo log.
func (r *Runner) Execute(ctx context.Context, cmd *Command) (Result, error) {
	if cmd == nil || cmd.Action == nil {
		return nil, fmt.Errorf("%w: no action", ErrInvalid)
	}

	if cmd.State != StateCreated {
		return nil, fmt.Errorf("execute %s: %w", cmd.ID, ErrAlreadyExecuted)
	}

	err := cmd.Action.validate()
	if err != nil {
		return nil, err
	}

	var (
		result Result
		read   bool
	)

	if ro, ok := cmd.Action.(reading); ok {
		result, err = r.read(ctx, cmd.UserID, ro)
		if err != nil {
			return nil, r.failed(cmd, err)
		}

		read = true
	}

	err = r.inTx(ctx, cmd.UserID, func(e *env) error {
		if !read {
			var execErr error

			result, execErr = cmd.Action.execute(ctx, e)
			if execErr != nil {
				return execErr
			}
		}

		executedAt := e.now
		cmd.State = StateExecuted
		cmd.ExecutedAt = &executedAt

		return r.save(ctx, e.tx, cmd)
	})
	if err != nil {
		return nil, r.failed(cmd, err)
	}

	r.logger.Info("command executed",
		zap.String("id", cmd.ID.String()),
		zap.String("kind", string(cmd.Kind())),
		zap.String("title", cmd.Title()))

	return result, nil
}

// Undo reverts the user's executed command identified by id or id prefix.
func (r *Runner) Undo(ctx context.Context, userID int64, id string) (*Command, error) {
	var cmd *Command

	err := r.inTx(ctx, userID, func(e *env) error {
		rec, err := e.tx.LoadCommand(ctx, id)
		if err != nil {
			return err
		}

		if rec.UserID != userID {
			return fmt.Errorf("%w: %s", store.ErrCommandNotFound, id)
		}

		cmd, err = fromRecord(rec)
		if err != nil {
			return err
		}

		switch {
		case !cmd.Undoable():
			return ErrNotUndoable
		case cmd.State == StateCreated:
			return ErrNotExecuted
		case cmd.State == StateUndone:
			return ErrAlreadyUndone
		}

		err = cmd.Action.undo(ctx, e)
		if err != nil {
			return err
		}

		undoneAt := e.now
		cmd.State = StateUndone
		cmd.UndoneAt = &undoneAt

		return r.save(ctx, e.tx, cmd)
	})
	if err != nil {
		return nil, fmt.Errorf("undo %s: %w", id, err)
	}

	r.logger.Info("command undone",
		zap.String("id", cmd.ID.String()),
		zap.String("kind", string(cmd.Kind())),
		zap.String("title", cmd.Title()))

	return cmd, nil
}

// Recent returns the user's newest commands first.
func (r *Runner) Recent(ctx context.Context, userID int64, limit int) ([]*Command, error) {
	recs, err := r.store.RecentCommands(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	cmds := make([]*Command, 0, len(recs))

	for _, rec := range recs {
		cmd, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}

		cmds = append(cmds, cmd)
	}

	return cmds, nil
}

// NeedsConfirmation reports whether cmd should be confirmed before it runs,
// given how many cards its scope currently selects.
func (r *Runner) NeedsConfirmation(ctx context.Context, cmd *Command) (bool, error) {
	scoped, ok := cmd.Action.(interface{ cardScope() Scope })
	if !ok {
		return cmd.Action.NeedsConfirmation(0), nil
	}

	cards, err := scoped.cardScope().Resolve(ctx, r.store, cmd.UserID, 0)
	if err != nil {
		return false, err
	}

	return cmd.Action.NeedsConfirmation(len(cards)), nil
}

// failed resets cmd after an unsuccessful execution and wraps err.
func (r *Runner) failed(cmd *Command, err error) error {
	cmd.State = StateCreated
	cmd.ExecutedAt = nil

	r.logger.Warn("command failed",
		zap.String("id", cmd.ID.String()),
		zap.String("kind", string(cmd.Kind())),
		zap.Error(err))

	return fmt.Errorf("execute %s: %w", cmd.Kind(), err)
}

func (r *Runner) read(ctx context.Context, userID int64, ro reading) (Result, error) {
	user, err := r.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	return ro.read(ctx, readEnv{cards: r.store, user: user, chat: r.chat})
}

func (r *Runner) inTx(ctx context.Context, userID int64, fn func(*env) error) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback() }()

	user, err := tx.User(ctx, userID)
	if err != nil {
		return err
	}

	err = fn(&env{tx: tx, user: user, chat: r.chat, now: r.store.Now().UTC().Truncate(time.Second)})
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Runner) save(ctx context.Context, tx *store.Tx, cmd *Command) error {
	rec, err := cmd.record()
	if err != nil {
		return err
	}

	err = tx.SaveCommand(ctx, rec)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}

	return nil
}
