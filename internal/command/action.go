package command

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/calvinalkan/agent-cards/internal/llm"
	"github.com/calvinalkan/agent-cards/internal/store"
)

// Kind names an action type. It is stored with every command.
type Kind string

// Action kinds.
const (
	KindDo          Kind = "do"
	KindConsider    Kind = "consider"
	KindClose       Kind = "close"
	KindStage       Kind = "stage"
	KindAssign      Kind = "assign"
	KindTag         Kind = "tag"
	KindAddCard     Kind = "add_card"
	KindFilterCards Kind = "filter_cards"
	KindSearch      Kind = "search"
	KindClear       Kind = "clear"
	KindVisit       Kind = "visit"
	KindInsight     Kind = "insight"
)

// Action is implemented by the action types of this package only.
type Action interface {
	Kind() Kind
	Title() string
	Undoable() bool
	// NeedsConfirmation reports whether the user should confirm before the
	// action runs against n cards.
	NeedsConfirmation(n int) bool

	validate() error
	execute(ctx context.Context, e *env) (Result, error)
	undo(ctx context.Context, e *env) error
}

// env is what an action sees while it runs: the open transaction, the
// acting user and the collaborators.
type env struct {
	tx   *store.Tx
	user store.User
	chat llm.Chat
	now  time.Time
}

// reading is implemented by actions that change nothing. The runner calls
// read before it takes the writer lock, so a slow model call never holds
// up other writers.
type reading interface {
	read(ctx context.Context, e readEnv) (Result, error)
}

// readEnv is what a reading action sees: store reads outside any write
// transaction.
type readEnv struct {
	cards CardReader
	user  store.User
	chat  llm.Chat
}

// Decode rebuilds a persisted action.
func Decode(kind Kind, data []byte) (Action, error) {
	var action Action

	switch kind {
	case KindDo:
		action = &Do{}
	case KindConsider:
		action = &Consider{}
	case KindClose:
		action = &Close{}
	case KindStage:
		action = &Stage{}
	case KindAssign:
		action = &Assign{}
	case KindTag:
		action = &Tag{}
	case KindAddCard:
		action = &AddCard{}
	case KindFilterCards:
		action = &FilterCards{}
	case KindSearch:
		action = &Search{}
	case KindClear:
		action = &Clear{}
	case KindVisit:
		action = &Visit{}
	case KindInsight:
		action = &Insight{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	err := json.Unmarshal(data, action)
	if err != nil {
		return nil, fmt.Errorf("decode %s command: %w", kind, err)
	}

	return action, nil
}

// Result is what executing an action produced. It is one of
// [RedirectResult], [InsightResult] or [MutationResult].
type Result interface {
	result()
}

// RedirectResult asks the caller to navigate.
type RedirectResult struct {
	Path   string
	Params url.Values
}

// URL renders the path with its query string.
func (r RedirectResult) URL() string {
	if len(r.Params) == 0 {
		return r.Path
	}

	return r.Path + "?" + r.Params.Encode()
}

// InsightResult is a model-written answer.
type InsightResult struct {
	Text string
}

// MutationResult lists the cards an action changed and those it left alone.
type MutationResult struct {
	Affected []int64
	Skipped  []int64
}

func (RedirectResult) result() {}
func (InsightResult) result()  {}
func (MutationResult) result() {}

// noUndo is embedded by actions that only navigate or answer.
type noUndo struct{}

func (noUndo) Undoable() bool               { return false }
func (noUndo) NeedsConfirmation(_ int) bool { return false }

func (noUndo) undo(context.Context, *env) error { return ErrNotUndoable }
