package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/store"
)

// AddCard creates a card in Collection, or in the user's first collection
// when Collection is empty. Undo deletes it.
type AddCard struct {
	CardTitle  string `json:"title,omitempty"`
	Collection string `json:"collection,omitempty"`
	CardID     int64  `json:"card_id,omitempty"`
}

func (*AddCard) Kind() Kind { return KindAddCard }

func (a *AddCard) Title() string {
	if a.CardTitle == "" {
		return "Add card"
	}

	return fmt.Sprintf("Add card '%s'", a.CardTitle)
}

func (*AddCard) Undoable() bool { return true }

func (*AddCard) NeedsConfirmation(_ int) bool { return false }

func (a *AddCard) validate() error {
	a.CardTitle = strings.TrimSpace(a.CardTitle)

	return nil
}

func (a *AddCard) execute(ctx context.Context, e *env) (Result, error) {
	var (
		collectionID int64
		err          error
	)

	if a.Collection != "" {
		collectionID, err = e.tx.CollectionByName(ctx, e.user.ID, a.Collection)
	} else {
		collectionID, err = e.tx.DefaultCollection(ctx, e.user.ID)
	}

	if err != nil {
		return nil, err
	}

	a.CardID, err = e.tx.CreateCard(ctx, store.NewCard{
		Title:        a.CardTitle,
		CollectionID: collectionID,
		CreatorID:    e.user.ID,
	})
	if err != nil {
		return nil, err
	}

	return RedirectResult{Path: fmt.Sprintf("/cards/%d", a.CardID)}, nil
}

func (a *AddCard) undo(ctx context.Context, e *env) error {
	if a.CardID == 0 {
		return nil
	}

	ok, err := accessible(ctx, e, a.CardID)
	if err != nil || !ok {
		return err
	}

	return e.tx.DeleteCard(ctx, a.CardID)
}
