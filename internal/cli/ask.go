package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/command"
	"github.com/calvinalkan/agent-cards/internal/dispatch"
	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/translate"

	flag "github.com/spf13/pflag"
)

var errInvalidView = errors.New("invalid --view")

// askCmd returns the ask command.
func askCmd(a *app) *Command {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.BoolP("yes", "y", false, "Run commands that need confirmation without asking")

	return &Command{
		Flags:    fs,
		AsUser:   true,
		WithView: true,
		Usage:    "ask [flags] <text...>",
		Short:    "Run a command-bar request",
		Long: "Run one command-bar request. Text starting with / is a command (\"/close as duplicate\"), " +
			"a bare number opens that card, a question ending in ? asks about the cards in view, " +
			"and anything else is translated into filters and commands.\n\n" +
			"Each executed command prints its id, which \"cards undo\" accepts.",
		Exec: func(ctx context.Context, io *IO, call *Call) error {
			return execAsk(ctx, io, a, fs, call)
		},
	}
}

func execAsk(ctx context.Context, io *IO, a *app, fs *flag.FlagSet, call *Call) error {
	input := strings.TrimSpace(strings.Join(call.Args, " "))
	if input == "" {
		return fmt.Errorf("%w: nothing to ask", ErrArgsRequired)
	}

	var confirm dispatch.ConfirmFunc
	if yes, _ := fs.GetBool("yes"); !yes {
		confirm = promptConfirm(io)
	}

	d, err := a.dispatcher(ctx, call.Store, confirm)
	if err != nil {
		return err
	}

	outcomes, err := d.Run(ctx, translate.Request{User: call.User, View: call.View}, input)
	printOutcomes(io, outcomes)

	if err != nil {
		return fmt.Errorf("the action could not be completed: %w", err)
	}

	return nil
}

// translateCmd returns the translate command.
func translateCmd(a *app) *Command {
	return &Command{
		AsUser:   true,
		WithView: true,
		Usage:    "translate [flags] <text...>",
		Short:    "Show how a request is understood",
		Long: "Translate a request into its filter context and command list and print the result as JSON. " +
			"Nothing is executed.",
		Exec: func(ctx context.Context, io *IO, call *Call) error {
			return execTranslate(ctx, io, a, call)
		},
	}
}

func execTranslate(ctx context.Context, io *IO, a *app, call *Call) error {
	input := strings.TrimSpace(strings.Join(call.Args, " "))
	if input == "" {
		return fmt.Errorf("%w: nothing to translate", ErrArgsRequired)
	}

	tr, err := a.translator(ctx, call.Store)
	if err != nil {
		return err
	}

	intent, err := tr.Translate(ctx, translate.Request{User: call.User, View: call.View}, input)
	if errors.Is(err, translate.ErrTranslation) {
		io.WarnLLM(err.Error(), "the request will run as a search for its text")

		intent = translate.Fallback(input)
	} else if err != nil {
		return err
	}

	out, err := json.MarshalIndent(intent, "", "  ")
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}

	io.Println(string(out))

	return nil
}

// parseView reads the --view flag: "" for no view, "card:<id>", "list" or
// "list:<query>" where query holds list parameters such as
// "tag_ids[]=bug&indexed_by=closed".
func parseView(raw string) (translate.View, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(raw), ":")

	switch kind {
	case "", string(translate.ViewNone):
		return translate.View{Kind: translate.ViewNone}, nil
	case string(translate.ViewCard):
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return translate.View{}, fmt.Errorf("%w: card view needs a card id, got %q", errInvalidView, arg)
		}

		return translate.View{Kind: translate.ViewCard, CardID: id}, nil
	case string(translate.ViewList):
		params, err := url.ParseQuery(arg)
		if err != nil {
			return translate.View{}, fmt.Errorf("%w: %w", errInvalidView, err)
		}

		f, err := filter.FromParams(params)
		if err != nil {
			return translate.View{}, fmt.Errorf("%w: %w", errInvalidView, err)
		}

		return translate.View{Kind: translate.ViewList, Filter: f}, nil
	default:
		return translate.View{}, fmt.Errorf("%w: %q", errInvalidView, raw)
	}
}

// promptConfirm asks on stdin. Anything but y or yes declines, as does
// missing input.
func promptConfirm(io *IO) dispatch.ConfirmFunc {
	return func(_ context.Context, cmd *command.Command) (bool, error) {
		answer, err := io.ReadLine(cmd.Title() + "? [y/N] ")
		if err != nil {
			return false, nil //nolint:nilerr // no answer declines
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

func printOutcomes(io *IO, outcomes []dispatch.Outcome) {
	for _, o := range outcomes {
		io.Printf("%s %s\n", o.Command.ID, o.Command.Title())

		switch res := o.Result.(type) {
		case command.RedirectResult:
			io.Println("  open", res.URL())
		case command.InsightResult:
			for line := range strings.SplitSeq(strings.TrimSpace(res.Text), "\n") {
				io.Println("  " + line)
			}
		case command.MutationResult:
			io.Printf("  changed %s", cardList(res.Affected))

			if len(res.Skipped) > 0 {
				io.Printf(", skipped %s", cardList(res.Skipped))
			}

			io.Println()
		}
	}
}

func cardList(ids []int64) string {
	if len(ids) == 0 {
		return "no cards"
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "#" + strconv.FormatInt(id, 10)
	}

	return strings.Join(parts, " ")
}
