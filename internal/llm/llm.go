// Package llm provides the language-model chat backends used for request
// translation and insight answers.
//
// Backends are stateless: one call sends the fixed instructions plus the
// user's text and returns the reply text verbatim. They never retry; a
// failed call is reported to the caller as-is.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/agent-cards/internal/config"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("llm returned no content")

// ErrNoAPIKey is returned when a backend is constructed without credentials.
var ErrNoAPIKey = errors.New("llm api key is required")

// Chat asks a model a single question under fixed instructions.
type Chat interface {
	Ask(ctx context.Context, instructions, query string) (string, error)
}

// ChatFunc adapts a plain function to [Chat].
type ChatFunc func(ctx context.Context, instructions, query string) (string, error)

// Ask calls f.
func (f ChatFunc) Ask(ctx context.Context, instructions, query string) (string, error) {
	return f(ctx, instructions, query)
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg config.LLM) (Chat, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownLLM, cfg.Provider)
	}
}
