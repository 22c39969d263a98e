package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/store"
)

// Scope selects the cards an action applies to. Explicit CardIDs win over
// Filter; an empty scope is every card the user can access.
type Scope struct {
	CardIDs []int64        `json:"card_ids,omitempty"`
	Filter  filter.Context `json:"filter,omitzero"`
}

// CardReader is the read side shared by [store.Store] and [store.Tx].
type CardReader interface {
	AccessibleCards(ctx context.Context, userID int64, query store.CardQuery) ([]store.Card, error)
}

// Resolve returns the user's accessible cards in scope, at most limit when
// limit > 0.
func (s Scope) Resolve(ctx context.Context, r CardReader, userID int64, limit int) ([]store.Card, error) {
	query := store.CardQuery{Filter: s.Filter, Limit: limit}
	if len(s.CardIDs) > 0 {
		query.Filter = filter.Context{CardIDs: s.CardIDs}
	}

	cards, err := r.AccessibleCards(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("resolve scope: %w", err)
	}

	return cards, nil
}

func (s Scope) describe() string {
	switch {
	case len(s.CardIDs) == 1:
		return fmt.Sprintf("card #%d", s.CardIDs[0])
	case len(s.CardIDs) > 1:
		return fmt.Sprintf("%d cards", len(s.CardIDs))
	case s.Filter.IsEmpty():
		return "all cards"
	default:
		return "matching cards"
	}
}

// Cards is embedded by actions that change a set of cards. Affected is
// filled in on execution.
type Cards struct {
	Scope    Scope   `json:"scope"`
	Affected []int64 `json:"affected,omitempty"`
}

func (c *Cards) cards(ctx context.Context, e *env) ([]store.Card, error) {
	return c.Scope.Resolve(ctx, e.tx, e.user.ID, 0)
}

// accessible reports whether the user can still see the card. Undo leaves
// alone cards that were deleted or moved out of the user's collections.
func accessible(ctx context.Context, e *env, cardID int64) (bool, error) {
	_, err := e.tx.FindCard(ctx, e.user.ID, cardID)
	if errors.Is(err, store.ErrCardNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

func (c *Cards) cardScope() Scope { return c.Scope }

func (c *Cards) description() string {
	switch n := len(c.Affected); {
	case n == 1:
		return fmt.Sprintf("card #%d", c.Affected[0])
	case n > 1:
		return fmt.Sprintf("%d cards", n)
	default:
		return c.Scope.describe()
	}
}

func (c *Cards) NeedsConfirmation(_ int) bool { return false }

func (c *Cards) Undoable() bool { return true }

// mutation builds the result for an action that changed c.Affected out of
// the cards it looked at.
func (c *Cards) mutation(seen []store.Card) MutationResult {
	res := MutationResult{Affected: slices.Clone(c.Affected)}

	for _, card := range seen {
		if !slices.Contains(c.Affected, card.ID) {
			res.Skipped = append(res.Skipped, card.ID)
		}
	}

	return res
}

func required(kind Kind, what, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: /%s needs %s", ErrInvalid, kind, what)
	}

	return nil
}
