// Package dispatch turns command-bar input into bound commands and runs them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-cards/internal/command"
	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/store"
	"github.com/calvinalkan/agent-cards/internal/translate"
)

// Errors returned by [Parser.Parse].
var (
	ErrEmptyInput     = errors.New("nothing to do")
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoScope        = errors.New("no cards selected")
)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// Translator is the part of [translate.Translator] the parser needs.
type Translator interface {
	Translate(ctx context.Context, req translate.Request, query string) (translate.Intent, error)
}

// Plan is the parsed form of one input: the intent it was read as and the
// commands to run, in order.
type Plan struct {
	Intent   translate.Intent
	Commands []*command.Command
}

// Parser reads command-bar input.
type Parser struct {
	translator Translator
	store      *store.Store
	logger     *zap.Logger
}

// NewParser returns a Parser. logger may be nil.
func NewParser(translator Translator, s *store.Store, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Parser{translator: translator, store: s, logger: logger}
}

// Parse reads input made by req.User from req.View:
//
//   - "/verb args" is a command descriptor, applied to the current view;
//   - a bare number naming a card the user can see visits that card;
//   - a question ending in "?" asks for an insight about the current view;
//   - anything else is translated, falling back to a search.
func (p *Parser) Parse(ctx context.Context, req translate.Request, input string) (Plan, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Plan{}, ErrEmptyInput
	}

	intent, err := p.interpret(ctx, req, input)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Intent: intent}

	if len(intent.Commands) == 0 {
		if intent.Context == nil {
			return Plan{}, ErrEmptyInput
		}

		cmd, err := command.New(req.User.ID, command.NewFilterCards(*intent.Context), p.store.Now())
		if err != nil {
			return Plan{}, err
		}

		plan.Commands = append(plan.Commands, cmd)

		return plan, nil
	}

	scope, scoped := scopeFor(req.View, intent.Context)

	for _, descriptor := range intent.Commands {
		action, err := p.action(ctx, req, descriptor, scope, scoped)
		if err != nil {
			return Plan{}, err
		}

		cmd, err := command.New(req.User.ID, action, p.store.Now())
		if err != nil {
			return Plan{}, err
		}

		plan.Commands = append(plan.Commands, cmd)
	}

	return plan, nil
}

func (p *Parser) interpret(ctx context.Context, req translate.Request, input string) (translate.Intent, error) {
	switch {
	case strings.HasPrefix(input, "/"):
		return translate.Intent{Commands: []string{input}}, nil
	case digitsOnly.MatchString(input):
		id, err := strconv.ParseInt(input, 10, 64)
		if err == nil {
			card, findErr := p.store.FindCard(ctx, req.User.ID, id)
			if findErr == nil {
				return translate.Intent{Commands: []string{"/visit " + card.Path()}}, nil
			}

			if !errors.Is(findErr, store.ErrCardNotFound) {
				return translate.Intent{}, findErr
			}
		}
	case strings.HasSuffix(input, "?"):
		return translate.Intent{Commands: []string{"/insight " + input}}, nil
	}

	intent, err := p.translator.Translate(ctx, req, input)
	if errors.Is(err, translate.ErrTranslation) {
		p.logger.Info("translation failed, searching instead", zap.String("input", input), zap.Error(err))

		return translate.Fallback(input), nil
	}

	return intent, err
}

// scopeFor binds commands to the cards the request is about. scoped is
// false when nothing is selected at all.
func scopeFor(view translate.View, ctx *filter.Context) (command.Scope, bool) {
	switch {
	case ctx != nil && view.Kind == translate.ViewList:
		return command.Scope{Filter: filter.Merge(view.Filter, *ctx)}, true
	case ctx != nil:
		return command.Scope{Filter: *ctx}, true
	case view.Kind == translate.ViewCard && view.CardID > 0:
		return command.Scope{CardIDs: []int64{view.CardID}}, true
	case view.Kind == translate.ViewList:
		return command.Scope{Filter: view.Filter}, true
	default:
		return command.Scope{}, false
	}
}

func (p *Parser) action(ctx context.Context, req translate.Request, descriptor string, scope command.Scope, scoped bool) (command.Action, error) {
	verb, arg := translate.SplitCommand(descriptor)

	switch command.Kind(verb) {
	case command.KindDo, command.KindConsider, command.KindClose,
		command.KindStage, command.KindAssign, command.KindTag:
		if !scoped {
			return nil, fmt.Errorf("%w: /%s needs a card or a filter", ErrNoScope, verb)
		}
	}

	switch command.Kind(verb) {
	case command.KindDo:
		return command.NewDo(scope), nil
	case command.KindConsider:
		return command.NewConsider(scope), nil
	case command.KindClose:
		return command.NewClose(scope, closeReason(arg)), nil
	case command.KindStage:
		if arg == "" {
			return &command.Stage{}, nil
		}

		stage, err := p.store.StageByName(ctx, req.User.ID, arg)
		if err != nil {
			return nil, err
		}

		return command.NewStage(scope, stage), nil
	case command.KindAssign:
		if arg == "" {
			return &command.Assign{}, nil
		}

		user, err := p.assignee(ctx, req.User, arg)
		if err != nil {
			return nil, err
		}

		return command.NewAssign(scope, user), nil
	case command.KindTag:
		return command.NewTag(scope, arg), nil
	case command.KindAddCard:
		var collection string
		if len(scope.Filter.CollectionIDs) > 0 {
			collection = scope.Filter.CollectionIDs[0]
		}

		return &command.AddCard{CardTitle: arg, Collection: collection}, nil
	case command.KindSearch:
		return &command.Search{Terms: arg}, nil
	case command.KindClear:
		return &command.Clear{}, nil
	case command.KindVisit:
		return &command.Visit{Path: arg}, nil
	case command.KindInsight:
		return &command.Insight{Scope: scope, Query: arg}, nil
	default:
		return nil, fmt.Errorf("%w: /%s", ErrUnknownCommand, verb)
	}
}

func (p *Parser) assignee(ctx context.Context, requester store.User, name string) (store.User, error) {
	name = strings.TrimPrefix(name, "@")
	if strings.EqualFold(name, "me") || strings.EqualFold(name, "myself") {
		return requester, nil
	}

	return p.store.UserByName(ctx, name)
}

// closeReason drops the "as" or "because" connective from "/close as X".
func closeReason(arg string) string {
	lower := strings.ToLower(arg)

	for _, connective := range []string{"as ", "because "} {
		if strings.HasPrefix(lower, connective) {
			return strings.TrimSpace(arg[len(connective):])
		}
	}

	return arg
}
