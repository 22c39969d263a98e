package translate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/timewindow"
)

var commandPattern = regexp.MustCompile(`^/[a-z_]+( .+)?$`)

// Decode parses a raw model reply. The reply must be one JSON object whose
// only keys are "context" and "commands", optionally wrapped in a markdown
// code fence. Empty parts are dropped.
func Decode(raw string) (Intent, error) {
	body := stripFence(raw)

	var parts map[string]json.RawMessage

	dec := json.NewDecoder(strings.NewReader(body))

	err := dec.Decode(&parts)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %w", ErrTranslation, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Intent{}, fmt.Errorf("%w: trailing data after reply", ErrTranslation)
	}

	if parts == nil {
		return Intent{}, fmt.Errorf("%w: reply is not an object", ErrTranslation)
	}

	var intent Intent

	for key, value := range parts {
		switch key {
		case "context":
			if isNull(value) {
				continue
			}

			ctx, err := filter.Decode(value)
			if err != nil {
				return Intent{}, fmt.Errorf("%w: context: %w", ErrTranslation, err)
			}

			if !ctx.IsEmpty() {
				intent.Context = &ctx
			}
		case "commands":
			if isNull(value) {
				continue
			}

			var commands []string

			err := json.Unmarshal(value, &commands)
			if err != nil {
				return Intent{}, fmt.Errorf("%w: commands: %w", ErrTranslation, err)
			}

			for _, c := range commands {
				c = strings.TrimSpace(c)
				if !commandPattern.MatchString(c) {
					return Intent{}, fmt.Errorf("%w: malformed command %q", ErrTranslation, c)
				}

				intent.Commands = append(intent.Commands, c)
			}
		default:
			return Intent{}, fmt.Errorf("%w: unexpected key %q", ErrTranslation, key)
		}
	}

	return intent, nil
}

// Enforce applies the translation rules to a decoded intent:
//
//   - names, tags and stages given to /assign, /tag and /stage are not also
//     filters;
//   - closure is only kept when query names a time window; either way the
//     intent lists closed cards;
//   - a /search fallback is dropped when anything else was produced.
func Enforce(intent Intent, query string) Intent {
	out := Intent{Commands: slices.Clone(intent.Commands)}

	if intent.Context != nil {
		ctx := *intent.Context

		for _, c := range out.Commands {
			verb, arg := SplitCommand(c)

			switch verb {
			case "assign":
				ctx.AssigneeIDs = removeFold(ctx.AssigneeIDs, arg)
			case "tag":
				ctx.TagIDs = removeFold(ctx.TagIDs, strings.TrimLeft(arg, "#"))
			case "stage":
				for _, word := range append(strings.Fields(arg), arg) {
					ctx.Terms = removeFold(ctx.Terms, word)
				}
			}
		}

		if ctx.Closure != "" {
			if !mentionsTimeWindow(query) {
				ctx.Closure = ""
			}

			ctx.IndexedBy = filter.IndexedByClosed
		}

		ctx = ctx.Normalize()
		if !ctx.IsEmpty() {
			out.Context = &ctx
		}
	}

	if out.Context != nil || slices.ContainsFunc(out.Commands, func(c string) bool { return !isSearch(c) }) {
		out.Commands = slices.DeleteFunc(out.Commands, isSearch)
	}

	if len(out.Commands) == 0 {
		out.Commands = nil
	}

	return out
}

// SplitCommand splits "/verb args" into its verb and trimmed argument text.
func SplitCommand(descriptor string) (string, string) {
	verb, arg, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(descriptor), "/"), " ")

	return strings.ToLower(verb), strings.TrimSpace(arg)
}

func isSearch(descriptor string) bool {
	verb, _ := SplitCommand(descriptor)

	return verb == "search"
}

func mentionsTimeWindow(query string) bool {
	normalized := timewindow.Normalize(query)

	for _, token := range timewindow.Tokens() {
		if strings.Contains(normalized, token) {
			return true
		}
	}

	return false
}

func removeFold(values []string, target string) []string {
	if target == "" {
		return values
	}

	return slices.DeleteFunc(slices.Clone(values), func(v string) bool {
		return strings.EqualFold(v, target)
	})
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
