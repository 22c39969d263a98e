package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/store"
	"github.com/calvinalkan/agent-cards/internal/timewindow"

	flag "github.com/spf13/pflag"
)

const defaultLimit = 100

// lsCmd returns the ls command.
func lsCmd(a *app) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.StringArray("term", nil, "Match title or description (repeatable)")
	fs.StringArray("assignee", nil, "Assigned to this user (repeatable)")
	fs.Bool("unassigned", false, "Only cards nobody is assigned to")
	fs.StringArray("creator", nil, "Created by this user (repeatable)")
	fs.StringArray("collection", nil, "In this collection (repeatable)")
	fs.StringArray("tag", nil, "Tagged with this tag (repeatable)")
	fs.Int64Slice("card", nil, "Only these card ids")
	fs.String("indexed-by", "", "newest|oldest|latest|stalled|closed")
	fs.String("creation", "", "Created within a time window (today, thisweek, lastmonth, ...)")
	fs.String("closure", "", "Closed within a time window (implies --indexed-by closed)")
	fs.Int("limit", defaultLimit, "Maximum cards to show")

	return &Command{
		Flags:  fs,
		AsUser: true,
		Usage:  "ls [flags]",
		Short:  "List cards you can see",
		Long: "List the cards in collections you have access to. Flags combine like a filter context: " +
			"repeatable flags match any of their values, different flags must all match.",
		Exec: func(ctx context.Context, io *IO, call *Call) error {
			return execLs(ctx, io, fs, call)
		},
	}
}

func execLs(ctx context.Context, io *IO, fs *flag.FlagSet, call *Call) error {
	f, err := lsFilter(fs)
	if err != nil {
		return err
	}

	limit, _ := fs.GetInt("limit")
	if limit < 0 {
		return errors.New("--limit must be non-negative")
	}

	cards, err := call.Store.AccessibleCards(ctx, call.User.ID, store.CardQuery{Filter: f, Limit: limit})
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}

	for _, c := range cards {
		io.Println(formatCardLine(c))
	}

	return nil
}

func lsFilter(fs *flag.FlagSet) (filter.Context, error) {
	strs := func(name string) []string {
		v, _ := fs.GetStringArray(name)
		return v
	}
	str := func(name string) string {
		v, _ := fs.GetString(name)
		return v
	}

	cardIDs, _ := fs.GetInt64Slice("card")

	f := filter.Context{
		Terms:         strs("term"),
		AssigneeIDs:   strs("assignee"),
		CreatorIDs:    strs("creator"),
		CollectionIDs: strs("collection"),
		TagIDs:        strs("tag"),
		CardIDs:       cardIDs,
		IndexedBy:     str("indexed-by"),
		Creation:      timewindow.Normalize(str("creation")),
		Closure:       timewindow.Normalize(str("closure")),
	}

	if unassigned, _ := fs.GetBool("unassigned"); unassigned {
		f.AssignmentStatus = filter.AssignmentUnassigned
	}

	if f.Closure != "" && f.IndexedBy == "" {
		f.IndexedBy = filter.IndexedByClosed
	}

	f = f.Normalize()

	err := f.Validate()
	if err != nil {
		return filter.Context{}, err
	}

	return f, nil
}

func formatCardLine(c store.Card) string {
	var b strings.Builder

	fmt.Fprintf(&b, "#%-5d [%s] %s", c.ID, c.Status, c.Title)

	where := c.CollectionName
	if c.StageName != "" {
		where += " / " + c.StageName
	}

	fmt.Fprintf(&b, " (%s)", where)

	for _, name := range c.Assignees {
		b.WriteString(" @" + name)
	}

	for _, tag := range c.Tags {
		b.WriteString(" #" + tag)
	}

	return b.String()
}
