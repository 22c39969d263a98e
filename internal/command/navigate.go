package command

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/filter"
)

const cardsPath = "/cards"

// FilterCards shows the card list filtered by Params, narrowed to CardIDs.
type FilterCards struct {
	noUndo

	CardIDs []int64    `json:"card_ids,omitempty"`
	Params  url.Values `json:"params,omitempty"`
}

// NewFilterCards builds the command for a filter-only request.
func NewFilterCards(ctx filter.Context) *FilterCards {
	return &FilterCards{CardIDs: ctx.CardIDs, Params: ctx.Params()}
}

func (*FilterCards) Kind() Kind { return KindFilterCards }

func (f *FilterCards) Title() string {
	if len(f.CardIDs) == 0 {
		return "Filter cards"
	}

	ids := make([]string, 0, len(f.CardIDs))
	for _, id := range f.CardIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	return "Filter cards " + strings.Join(ids, ", ")
}

func (*FilterCards) validate() error { return nil }

func (f *FilterCards) execute(context.Context, *env) (Result, error) {
	params := filter.Without(f.Params, "card_ids[]")
	for _, id := range f.CardIDs {
		params.Add("card_ids[]", strconv.FormatInt(id, 10))
	}

	return RedirectResult{Path: cardsPath, Params: params}, nil
}

// Search runs a full-text search.
type Search struct {
	noUndo

	Terms string `json:"terms"`
}

func (*Search) Kind() Kind { return KindSearch }

func (s *Search) Title() string { return fmt.Sprintf("Search '%s'", s.Terms) }

func (s *Search) validate() error {
	s.Terms = strings.TrimSpace(s.Terms)

	return required(KindSearch, "search terms", s.Terms)
}

func (s *Search) execute(context.Context, *env) (Result, error) {
	return RedirectResult{Path: "/search", Params: url.Values{"q": {s.Terms}}}, nil
}

// Clear drops the current filter.
type Clear struct {
	noUndo
}

func (*Clear) Kind() Kind { return KindClear }

func (*Clear) Title() string { return "Clear filters" }

func (*Clear) validate() error { return nil }

func (*Clear) execute(context.Context, *env) (Result, error) {
	return RedirectResult{Path: cardsPath}, nil
}

// Visit opens a path or URL.
type Visit struct {
	noUndo

	Path string `json:"path"`
}

func (*Visit) Kind() Kind { return KindVisit }

func (v *Visit) Title() string { return "Visit " + v.Path }

func (v *Visit) validate() error {
	v.Path = strings.TrimSpace(v.Path)

	return required(KindVisit, "a path", v.Path)
}

func (v *Visit) execute(context.Context, *env) (Result, error) {
	return RedirectResult{Path: v.Path}, nil
}
