package command

import (
	"context"
	"fmt"

	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/store"
)

// Assign assigns cards to a user. Cards already assigned to them are left
// alone and not unassigned on undo.
type Assign struct {
	Cards

	AssigneeID   int64  `json:"assignee_id"`
	AssigneeName string `json:"assignee_name,omitempty"`
}

// NewAssign returns an Assign of scope to user.
func NewAssign(scope Scope, user store.User) *Assign {
	return &Assign{Cards: Cards{Scope: scope}, AssigneeID: user.ID, AssigneeName: user.Name}
}

func (*Assign) Kind() Kind { return KindAssign }

func (a *Assign) Title() string {
	return fmt.Sprintf("Assign %s to %s", a.description(), a.AssigneeName)
}

func (a *Assign) validate() error {
	if a.AssigneeID == 0 {
		return fmt.Errorf("%w: /assign needs a person", ErrInvalid)
	}

	return nil
}

func (a *Assign) execute(ctx context.Context, e *env) (Result, error) {
	assignee, err := e.tx.User(ctx, a.AssigneeID)
	if err != nil {
		return nil, err
	}

	a.AssigneeName = assignee.Name

	cards, err := a.cards(ctx, e)
	if err != nil {
		return nil, err
	}

	a.Affected = nil

	for _, card := range cards {
		added, err := e.tx.Assign(ctx, card.ID, a.AssigneeID)
		if err != nil {
			return nil, err
		}

		if added {
			a.Affected = append(a.Affected, card.ID)
		}
	}

	return a.mutation(cards), nil
}

func (a *Assign) undo(ctx context.Context, e *env) error {
	for _, cardID := range a.Affected {
		ok, err := accessible(ctx, e, cardID)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		err = e.tx.Unassign(ctx, cardID, a.AssigneeID)
		if err != nil {
			return err
		}
	}

	return nil
}

// Tag tags cards. Cards that already had the tag keep it on undo.
type Tag struct {
	Cards

	TagName string `json:"tag"`
}

// NewTag returns a Tag of scope with tag.
func NewTag(scope Scope, tag string) *Tag {
	return &Tag{Cards: Cards{Scope: scope}, TagName: tag}
}

func (*Tag) Kind() Kind { return KindTag }

func (t *Tag) Title() string {
	return fmt.Sprintf("Tag %s with #%s", t.description(), t.TagName)
}

func (t *Tag) validate() error {
	t.TagName = filter.TagName(t.TagName)

	return required(KindTag, "a tag", t.TagName)
}

func (t *Tag) execute(ctx context.Context, e *env) (Result, error) {
	cards, err := t.cards(ctx, e)
	if err != nil {
		return nil, err
	}

	t.Affected = nil

	for _, card := range cards {
		added, err := e.tx.Tag(ctx, card.ID, t.TagName)
		if err != nil {
			return nil, err
		}

		if added {
			t.Affected = append(t.Affected, card.ID)
		}
	}

	return t.mutation(cards), nil
}

func (t *Tag) undo(ctx context.Context, e *env) error {
	for _, cardID := range t.Affected {
		ok, err := accessible(ctx, e, cardID)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		err = e.tx.Untag(ctx, cardID, t.TagName)
		if err != nil {
			return err
		}
	}

	return nil
}
