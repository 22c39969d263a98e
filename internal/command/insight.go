package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/translate"
)

// MaxInsightCards caps how many cards are handed to the model.
const MaxInsightCards = 100

// Insight answers a question about the cards in scope.
type Insight struct {
	noUndo

	Scope Scope  `json:"scope"`
	Query string `json:"query"`
}

func (*Insight) Kind() Kind { return KindInsight }

func (i *Insight) Title() string { return fmt.Sprintf("Insight query '%s'", i.Query) }

func (i *Insight) validate() error {
	i.Query = strings.TrimSpace(i.Query)

	return required(KindInsight, "a question", i.Query)
}

func (i *Insight) execute(ctx context.Context, e *env) (Result, error) {
	return i.read(ctx, readEnv{cards: e.tx, user: e.user, chat: e.chat})
}

func (i *Insight) read(ctx context.Context, e readEnv) (Result, error) {
	if e.chat == nil {
		return nil, ErrNoChat
	}

	cards, err := i.Scope.Resolve(ctx, e.cards, e.user.ID, MaxInsightCards)
	if err != nil {
		return nil, err
	}

	prompts := make([]string, 0, len(cards))
	for _, card := range cards {
		prompts = append(prompts, card.Prompt())
	}

	answer, err := e.chat.Ask(ctx, translate.InsightInstructions(e.user.FirstName(), prompts), i.Query)
	if err != nil {
		return nil, fmt.Errorf("insight: %w", err)
	}

	return InsightResult{Text: strings.TrimSpace(answer)}, nil
}
