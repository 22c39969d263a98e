// Package filter defines the card selection criteria produced by translation
// and consumed by the card store.
//
// A [Context] only ever carries meaningful values: empty strings, empty
// slices and defaults are omitted from its JSON form, and [Decode] rejects
// keys outside the known set instead of ignoring them.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"github.com/calvinalkan/agent-cards/internal/timewindow"
)

// Orderings accepted for IndexedBy.
const (
	IndexedByNewest  = "newest"
	IndexedByOldest  = "oldest"
	IndexedByLatest  = "latest"
	IndexedByStalled = "stalled"
	IndexedByClosed  = "closed"
)

// AssignmentUnassigned is the only accepted AssignmentStatus.
const AssignmentUnassigned = "unassigned"

// ErrInvalid reports a context that does not match the schema.
var ErrInvalid = errors.New("invalid filter context")

// Context narrows which cards a request applies to.
type Context struct {
	Terms            []string `json:"terms,omitempty"`
	IndexedBy        string   `json:"indexed_by,omitempty"`
	AssigneeIDs      []string `json:"assignee_ids,omitempty"`
	AssignmentStatus string   `json:"assignment_status,omitempty"`
	CardIDs          []int64  `json:"card_ids,omitempty"`
	CreatorIDs       []string `json:"creator_ids,omitempty"`
	CollectionIDs    []string `json:"collection_ids,omitempty"`
	TagIDs           []string `json:"tag_ids,omitempty"`
	Creation         string   `json:"creation,omitempty"`
	Closure          string   `json:"closure,omitempty"`
}

var knownKeys = map[string]bool{
	"terms": true, "indexed_by": true, "assignee_ids": true, "assignment_status": true,
	"card_ids": true, "creator_ids": true, "collection_ids": true, "tag_ids": true,
	"creation": true, "closure": true,
}

// stopTerms never narrow a search; they only introduce the query scope.
var stopTerms = map[string]bool{"card": true, "cards": true}

// IsEmpty reports whether the context carries no criteria at all.
func (c Context) IsEmpty() bool {
	return len(c.Terms) == 0 &&
		c.IndexedBy == "" &&
		len(c.AssigneeIDs) == 0 &&
		c.AssignmentStatus == "" &&
		len(c.CardIDs) == 0 &&
		len(c.CreatorIDs) == 0 &&
		len(c.CollectionIDs) == 0 &&
		len(c.TagIDs) == 0 &&
		c.Creation == "" &&
		c.Closure == ""
}

// Normalize returns a copy with trimmed values, duplicates removed, "#"
// prefixes dropped from tags and empty collections set to nil.
// Normalize is idempotent.
func (c Context) Normalize() Context {
	out := Context{
		Terms:            cleanStrings(c.Terms, func(s string) string { return s }),
		IndexedBy:        strings.TrimSpace(c.IndexedBy),
		AssigneeIDs:      cleanStrings(c.AssigneeIDs, func(s string) string { return s }),
		AssignmentStatus: strings.TrimSpace(c.AssignmentStatus),
		CardIDs:          cleanIDs(c.CardIDs),
		CreatorIDs:       cleanStrings(c.CreatorIDs, func(s string) string { return s }),
		CollectionIDs:    cleanStrings(c.CollectionIDs, func(s string) string { return s }),
		TagIDs:           cleanStrings(c.TagIDs, TagName),
		Creation:         strings.TrimSpace(c.Creation),
		Closure:          strings.TrimSpace(c.Closure),
	}

	out.Terms = slices.DeleteFunc(out.Terms, func(s string) bool { return stopTerms[strings.ToLower(s)] })
	if len(out.Terms) == 0 {
		out.Terms = nil
	}

	return out
}

// Validate checks enum values and id ranges.
func (c Context) Validate() error {
	switch c.IndexedBy {
	case "", IndexedByNewest, IndexedByOldest, IndexedByLatest, IndexedByStalled, IndexedByClosed:
	default:
		return fmt.Errorf("%w: indexed_by %q", ErrInvalid, c.IndexedBy)
	}

	if c.AssignmentStatus != "" && c.AssignmentStatus != AssignmentUnassigned {
		return fmt.Errorf("%w: assignment_status %q", ErrInvalid, c.AssignmentStatus)
	}

	if c.Creation != "" && !timewindow.Valid(c.Creation) {
		return fmt.Errorf("%w: creation %q", ErrInvalid, c.Creation)
	}

	if c.Closure != "" && !timewindow.Valid(c.Closure) {
		return fmt.Errorf("%w: closure %q", ErrInvalid, c.Closure)
	}

	if c.Creation != "" && c.Closure != "" {
		return fmt.Errorf("%w: creation and closure are mutually exclusive", ErrInvalid)
	}

	for _, id := range c.CardIDs {
		if id <= 0 {
			return fmt.Errorf("%w: card id %d", ErrInvalid, id)
		}
	}

	return nil
}

// Decode parses a JSON object into a normalized, validated Context.
// Unknown keys are rejected; null values of known keys are dropped.
func Decode(raw []byte) (Context, error) {
	var fields map[string]json.RawMessage

	err := json.Unmarshal(raw, &fields)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if fields == nil {
		return Context{}, fmt.Errorf("%w: context must be an object", ErrInvalid)
	}

	for key, value := range fields {
		if !knownKeys[key] {
			return Context{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
		}

		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			delete(fields, key)
		}
	}

	compacted, err := json.Marshal(fields)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	dec := json.NewDecoder(bytes.NewReader(compacted))
	dec.DisallowUnknownFields()

	var c Context

	err = dec.Decode(&c)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Context{}, fmt.Errorf("%w: trailing data", ErrInvalid)
	}

	c = c.Normalize()

	err = c.Validate()
	if err != nil {
		return Context{}, err
	}

	return c, nil
}

// Merge returns base with every non-empty field of overlay applied on top.
func Merge(base, overlay Context) Context {
	out := base

	if len(overlay.Terms) > 0 {
		out.Terms = overlay.Terms
	}

	if overlay.IndexedBy != "" {
		out.IndexedBy = overlay.IndexedBy
	}

	if len(overlay.AssigneeIDs) > 0 {
		out.AssigneeIDs = overlay.AssigneeIDs
	}

	if overlay.AssignmentStatus != "" {
		out.AssignmentStatus = overlay.AssignmentStatus
	}

	if len(overlay.CardIDs) > 0 {
		out.CardIDs = overlay.CardIDs
	}

	if len(overlay.CreatorIDs) > 0 {
		out.CreatorIDs = overlay.CreatorIDs
	}

	if len(overlay.CollectionIDs) > 0 {
		out.CollectionIDs = overlay.CollectionIDs
	}

	if len(overlay.TagIDs) > 0 {
		out.TagIDs = overlay.TagIDs
	}

	if overlay.Creation != "" {
		out.Creation = overlay.Creation
		out.Closure = ""
	}

	if overlay.Closure != "" {
		out.Closure = overlay.Closure
		out.Creation = ""
	}

	return out.Normalize()
}

// TagName strips leading "#" marks and surrounding whitespace from a tag.
// It is idempotent.
func TagName(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool { return r == '#' || unicode.IsSpace(r) })

	return strings.TrimRightFunc(s, unicode.IsSpace)
}

func cleanStrings(in []string, transform func(string) string) []string {
	if len(in) == 0 {
		return nil
	}

	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))

	for _, s := range in {
		s = strings.TrimSpace(transform(strings.TrimSpace(s)))
		if s == "" || seen[s] {
			continue
		}

		seen[s] = true
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

func cleanIDs(in []int64) []int64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]int64, 0, len(in))
	seen := make(map[int64]bool, len(in))

	for _, id := range in {
		if seen[id] {
			continue
		}

		seen[id] = true
		out = append(out, id)
	}

	return out
}
