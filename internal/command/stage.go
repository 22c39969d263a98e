package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/agent-cards/internal/store"
)

// Stage moves cards to a workflow stage. Cards whose collection uses a
// different workflow are skipped.
type Stage struct {
	Cards

	StageID   int64  `json:"stage_id"`
	StageName string `json:"stage_name,omitempty"`
	// OriginalStageIDs maps each moved card to its prior stage, 0 for none.
	OriginalStageIDs map[int64]int64 `json:"original_stage_ids_by_card_id,omitempty"`
}

// NewStage returns a Stage moving scope to stage.
func NewStage(scope Scope, stage store.Stage) *Stage {
	return &Stage{Cards: Cards{Scope: scope}, StageID: stage.ID, StageName: stage.Name}
}

func (*Stage) Kind() Kind { return KindStage }

func (s *Stage) Title() string {
	name := s.StageName
	if name == "" {
		name = fmt.Sprint(s.StageID)
	}

	return fmt.Sprintf("Move %s to stage '%s'", s.description(), name)
}

func (s *Stage) validate() error {
	if s.StageID == 0 {
		return fmt.Errorf("%w: /stage needs a stage", ErrInvalid)
	}

	return nil
}

func (s *Stage) execute(ctx context.Context, e *env) (Result, error) {
	stage, err := e.tx.Stage(ctx, s.StageID)
	if err != nil {
		return nil, err
	}

	s.StageName = stage.Name

	cards, err := s.cards(ctx, e)
	if err != nil {
		return nil, err
	}

	s.OriginalStageIDs = make(map[int64]int64, len(cards))
	s.Affected = nil

	for _, card := range cards {
		if card.WorkflowID == 0 || card.WorkflowID != stage.WorkflowID {
			continue
		}

		s.OriginalStageIDs[card.ID] = card.StageID

		err = e.tx.ChangeStage(ctx, card.ID, stage)
		if err != nil {
			return nil, err
		}

		s.Affected = append(s.Affected, card.ID)
	}

	return s.mutation(cards), nil
}

func (s *Stage) undo(ctx context.Context, e *env) error {
	for _, cardID := range s.Affected {
		originalID := s.OriginalStageIDs[cardID]
		if originalID == 0 {
			continue
		}

		ok, err := accessible(ctx, e, cardID)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		original, err := e.tx.Stage(ctx, originalID)
		if errors.Is(err, store.ErrStageNotFound) {
			continue
		}

		if err != nil {
			return err
		}

		err = e.tx.ChangeStage(ctx, cardID, original)
		if err != nil {
			return fmt.Errorf("restore stage of card %d: %w", cardID, err)
		}
	}

	return nil
}
