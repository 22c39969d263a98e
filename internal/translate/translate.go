// Package translate turns a free-text request into an [Intent]: an optional
// card filter plus an ordered list of command descriptors.
//
// The language model does the heavy lifting. Its reply is decoded strictly
// and the rules the model is asked to follow are enforced again here, so a
// reply that slips past the prompt still yields a consistent intent. Any
// reply that cannot be decoded is an [ErrTranslation]; callers fall back to a
// plain search with [Fallback].
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/llm"
	"github.com/calvinalkan/agent-cards/internal/store"
)

// ErrTranslation is returned when the model's reply cannot be turned into a
// valid intent.
var ErrTranslation = errors.New("request could not be translated")

// ViewKind is what the user is looking at when they make a request.
type ViewKind string

// View kinds.
const (
	ViewNone ViewKind = "none"
	ViewCard ViewKind = "card"
	ViewList ViewKind = "list"
)

// View is the screen a request is made from.
type View struct {
	Kind   ViewKind
	CardID int64          // CardID is set when Kind is ViewCard.
	Filter filter.Context // Filter is the list's active filter when Kind is ViewList.
}

// Description is the phrase used in prompts and cache keys.
func (v View) Description() string {
	switch v.Kind {
	case ViewCard:
		return "inside a card"
	case ViewList:
		return "viewing a list of cards"
	default:
		return "not seeing cards"
	}
}

// Request carries who is asking and from where.
type Request struct {
	User store.User
	View View
}

// Intent is a translated request.
type Intent struct {
	Context  *filter.Context `json:"context,omitempty"`
	Commands []string        `json:"commands,omitempty"`
}

// Fallback is the intent used when translation fails: a search for the
// verbatim text.
func Fallback(query string) Intent {
	return Intent{Commands: []string{strings.TrimSpace("/search " + strings.TrimSpace(query))}}
}

// Cache stores raw model replies by key. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, response string) error
}

// Translator translates requests with a chat model and a reply cache.
type Translator struct {
	chat   llm.Chat
	cache  Cache
	logger *zap.Logger
}

// New returns a Translator. cache may be nil to disable caching; logger may
// be nil.
func New(chat llm.Chat, cache Cache, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Translator{chat: chat, cache: cache, logger: logger}
}

// CacheKey identifies a translation: the same user asking the same thing
// from the same kind of view gets the same reply.
func CacheKey(req Request, query string) string {
	return fmt.Sprintf("command_translator:%d:%s:%s", req.User.ID, query, req.View.Description())
}

// Translate turns query into an Intent.
func (t *Translator) Translate(ctx context.Context, req Request, query string) (Intent, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Intent{}, fmt.Errorf("%w: empty request", ErrTranslation)
	}

	key := CacheKey(req, query)

	raw, cached := t.cached(ctx, key)
	if !cached {
		var err error

		raw, err = t.chat.Ask(ctx, Instructions(req), query)
		if err != nil {
			if ctx.Err() != nil {
				return Intent{}, fmt.Errorf("translate: %w", ctx.Err())
			}

			t.logger.Warn("translation request failed", zap.String("query", query), zap.Error(err))

			return Intent{}, fmt.Errorf("%w: %w", ErrTranslation, err)
		}
	}

	t.logger.Info("translated request",
		zap.String("query", query),
		zap.String("response", raw),
		zap.Bool("cached", cached))

	intent, err := Decode(raw)
	if err != nil {
		return Intent{}, err
	}

	intent = Enforce(intent, query)

	if intent.Context == nil && len(intent.Commands) == 0 {
		return Intent{}, fmt.Errorf("%w: reply has neither context nor commands", ErrTranslation)
	}

	if !cached && t.cache != nil {
		err = t.cache.Set(ctx, key, raw)
		if err != nil {
			t.logger.Warn("translation cache write failed", zap.Error(err))
		}
	}

	return intent, nil
}

func (t *Translator) cached(ctx context.Context, key string) (string, bool) {
	if t.cache == nil {
		return "", false
	}

	raw, ok, err := t.cache.Get(ctx, key)
	if err != nil {
		t.logger.Warn("translation cache read failed", zap.Error(err))

		return "", false
	}

	return raw, ok
}
