package command

import (
	"context"
	"fmt"

	"github.com/calvinalkan/agent-cards/internal/store"
)

// PriorStatus is a card's status before a status change.
type PriorStatus struct {
	Closed      bool   `json:"closed"`
	Doing       bool   `json:"doing"`
	Considering bool   `json:"considering"`
	CloseReason string `json:"close_reason,omitempty"`
}

func priorStatusOf(card store.Card) PriorStatus {
	return PriorStatus{
		Closed:      card.Closed(),
		Doing:       card.Doing(),
		Considering: card.Considering(),
		CloseReason: card.CloseReason,
	}
}

// statusChange is the shared body of Do, Consider and Close: snapshot each
// card's status, apply the transition, and on undo replay the snapshot.
type statusChange struct {
	Cards

	Statuses map[int64]PriorStatus `json:"statuses_by_card_id,omitempty"`
}

func (s *statusChange) apply(ctx context.Context, e *env, target string, transition func(int64) error) (Result, error) {
	cards, err := s.cards(ctx, e)
	if err != nil {
		return nil, err
	}

	s.Statuses = make(map[int64]PriorStatus, len(cards))
	s.Affected = nil

	for _, card := range cards {
		if card.Status == target {
			continue
		}

		s.Statuses[card.ID] = priorStatusOf(card)

		err = transition(card.ID)
		if err != nil {
			return nil, err
		}

		s.Affected = append(s.Affected, card.ID)
	}

	return s.mutation(cards), nil
}

func (s *statusChange) undo(ctx context.Context, e *env) error {
	for _, cardID := range s.Affected {
		prior, ok := s.Statuses[cardID]
		if !ok {
			continue
		}

		ok, err := accessible(ctx, e, cardID)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		switch {
		case prior.Closed:
			err = e.tx.Close(ctx, cardID, prior.CloseReason)
		case prior.Doing:
			err = e.tx.Engage(ctx, cardID)
		case prior.Considering:
			err = e.tx.Reconsider(ctx, cardID)
		}

		if err != nil {
			return fmt.Errorf("restore card %d: %w", cardID, err)
		}
	}

	return nil
}

func (*statusChange) validate() error { return nil }

// Do moves cards to doing.
type Do struct {
	statusChange
}

// NewDo returns a Do over scope.
func NewDo(scope Scope) *Do {
	d := &Do{}
	d.Scope = scope

	return d
}

func (*Do) Kind() Kind { return KindDo }

func (d *Do) Title() string { return "Move " + d.description() + " to Doing" }

func (d *Do) execute(ctx context.Context, e *env) (Result, error) {
	return d.apply(ctx, e, store.StatusDoing, func(id int64) error { return e.tx.Engage(ctx, id) })
}

// Consider moves cards back to considering.
type Consider struct {
	statusChange
}

// NewConsider returns a Consider over scope.
func NewConsider(scope Scope) *Consider {
	c := &Consider{}
	c.Scope = scope

	return c
}

func (*Consider) Kind() Kind { return KindConsider }

func (c *Consider) Title() string { return "Move " + c.description() + " to Considering" }

func (c *Consider) execute(ctx context.Context, e *env) (Result, error) {
	return c.apply(ctx, e, store.StatusConsidering, func(id int64) error { return e.tx.Reconsider(ctx, id) })
}

// Close closes cards with an optional reason.
type Close struct {
	statusChange

	Reason string `json:"reason,omitempty"`
}

// NewClose returns a Close over scope with an optional reason.
func NewClose(scope Scope, reason string) *Close {
	c := &Close{Reason: reason}
	c.Scope = scope

	return c
}

func (*Close) Kind() Kind { return KindClose }

func (c *Close) Title() string {
	if c.Reason != "" {
		return fmt.Sprintf("Close %s as '%s'", c.description(), c.Reason)
	}

	return "Close " + c.description()
}

// NeedsConfirmation is true when closing more than one card.
func (*Close) NeedsConfirmation(n int) bool { return n > 1 }

func (c *Close) execute(ctx context.Context, e *env) (Result, error) {
	return c.apply(ctx, e, store.StatusClosed, func(id int64) error { return e.tx.Close(ctx, id, c.Reason) })
}
