// Package command implements the actions a request can trigger, their
// undo log and the [Runner] that executes them inside a store transaction.
//
// Every action is a concrete type implementing [Action]. The action value is
// also its persisted form: whatever an action needs to undo itself is
// captured in its own fields during execution and stored with the command.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calvinalkan/agent-cards/internal/store"
)

// Errors returned by commands and the runner.
var (
	ErrInvalid         = errors.New("invalid command")
	ErrAlreadyExecuted = errors.New("command already executed")
	ErrNotExecuted     = errors.New("command has not been executed")
	ErrAlreadyUndone   = errors.New("command already undone")
	ErrNotUndoable     = errors.New("command cannot be undone")
	ErrUnknownKind     = errors.New("unknown command kind")
	ErrNoChat          = errors.New("no language model configured")
)

// State is a command's lifecycle position: created, then executed, then
// optionally undone.
type State string

// Command states.
const (
	StateCreated  State = "created"
	StateExecuted State = "executed"
	StateUndone   State = "undone"
)

// Command is one requested action by one user.
type Command struct {
	ID         uuid.UUID
	UserID     int64
	State      State
	CreatedAt  time.Time
	ExecutedAt *time.Time
	UndoneAt   *time.Time
	Action     Action
}

// New returns a created command for action with a fresh time-ordered id.
func New(userID int64, action Action, now time.Time) (*Command, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("new command id: %w", err)
	}

	return &Command{
		ID:        id,
		UserID:    userID,
		State:     StateCreated,
		CreatedAt: now,
		Action:    action,
	}, nil
}

// Kind is the action's kind.
func (c *Command) Kind() Kind { return c.Action.Kind() }

// Title summarizes the command for the undo log.
func (c *Command) Title() string { return c.Action.Title() }

// Undoable reports whether the command can be undone once executed.
func (c *Command) Undoable() bool { return c.Action.Undoable() }

func (c *Command) record() (store.CommandRecord, error) {
	data, err := json.Marshal(c.Action)
	if err != nil {
		return store.CommandRecord{}, fmt.Errorf("encode %s command: %w", c.Kind(), err)
	}

	return store.CommandRecord{
		ID:         c.ID.String(),
		UserID:     c.UserID,
		Kind:       string(c.Kind()),
		State:      string(c.State),
		Title:      c.Title(),
		Data:       data,
		CreatedAt:  c.CreatedAt,
		ExecutedAt: c.ExecutedAt,
		UndoneAt:   c.UndoneAt,
	}, nil
}

func fromRecord(rec store.CommandRecord) (*Command, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("decode command id %q: %w", rec.ID, err)
	}

	action, err := Decode(Kind(rec.Kind), rec.Data)
	if err != nil {
		return nil, err
	}

	return &Command{
		ID:         id,
		UserID:     rec.UserID,
		State:      State(rec.State),
		CreatedAt:  rec.CreatedAt,
		ExecutedAt: rec.ExecutedAt,
		UndoneAt:   rec.UndoneAt,
		Action:     action,
	}, nil
}
