package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/agent-cards/internal/command"
	"github.com/calvinalkan/agent-cards/internal/dispatch"
	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/translate"
)

const historyFile = "bar_history"

// barCmd returns the bar command.
func barCmd(a *app) *Command {
	return &Command{
		AsUser:   true,
		WithView: true,
		Usage:    "bar [flags]",
		Short:    "Interactive command bar",
		Long: "Read requests line by line like \"cards ask\" does, keeping track of the screen you are on: " +
			"opening a card or a list makes the next request apply to it. --view sets the screen to start on.\n\n" +
			"Besides requests the bar understands: undo <command-id>, log, where, help, exit.",
		Exec: func(ctx context.Context, io *IO, call *Call) error {
			return execBar(ctx, io, a, call)
		},
	}
}

// lineReader is the part of liner.State the bar uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// plainReader reads lines from the command's stdin when it is not a terminal.
type plainReader struct{ io *IO }

func (r plainReader) Prompt(prompt string) (string, error) { return r.io.ReadLine(prompt) }
func (plainReader) AppendHistory(string)                   {}
func (plainReader) Close() error                           { return nil }

type bar struct {
	app    *app
	io     *IO
	lines  lineReader
	view   translate.View
	runner *command.Runner
	disp   *dispatch.Dispatcher
	req    translate.Request
}

func execBar(ctx context.Context, o *IO, a *app, call *Call) error {
	s, user := call.Store, call.User

	b := &bar{app: a, io: o, view: call.View, runner: a.runner(ctx, s), req: translate.Request{User: user}}

	if a.terminal && liner.TerminalSupported() {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		b.loadHistory(state)

		defer b.saveHistory(state)

		b.lines = state
	} else {
		b.lines = plainReader{io: o}
	}

	defer func() { _ = b.lines.Close() }()

	var err error

	b.disp, err = a.dispatcher(ctx, s, b.confirm)
	if err != nil {
		return err
	}

	o.Printf("Hi %s. Type a request, or help.\n", user.FirstName())

	for ctx.Err() == nil {
		line, err := b.lines.Prompt(b.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		b.lines.AppendHistory(line)

		if !b.handle(ctx, line) {
			return nil
		}
	}

	return ctx.Err()
}

// handle runs one line. It returns false when the bar should exit.
func (b *bar) handle(ctx context.Context, line string) bool {
	word, rest, _ := strings.Cut(line, " ")

	switch strings.ToLower(word) {
	case "exit", "quit":
		return false
	case "help":
		b.io.Println("Requests: \"/close as done\", \"cards assigned to me\", \"42\", \"what is stuck?\"")
		b.io.Println("Bar commands: undo <command-id>, log, where, exit")
	case "where":
		b.io.Println(b.view.Description())
	case "log":
		cmds, err := b.runner.Recent(ctx, b.req.User.ID, 10)
		if err != nil {
			b.io.ErrPrintln("error:", err)
			break
		}

		for _, cmd := range cmds {
			b.io.Println(formatCommandLine(cmd))
		}
	case "undo":
		cmd, err := b.runner.Undo(ctx, b.req.User.ID, strings.TrimSpace(rest))
		if err != nil {
			b.io.ErrPrintln("error: the action could not be undone:", err)
			break
		}

		b.io.Printf("undone %s %s\n", cmd.ID, cmd.Title())
	default:
		b.ask(ctx, line)
	}

	return true
}

func (b *bar) ask(ctx context.Context, line string) {
	req := b.req
	req.View = b.view

	outcomes, err := b.disp.Run(ctx, req, line)
	printOutcomes(b.io, outcomes)

	for _, o := range outcomes {
		if res, ok := o.Result.(command.RedirectResult); ok {
			b.view = viewAfter(res)
		}
	}

	if err != nil {
		b.io.ErrPrintln("error: the action could not be completed:", err)
	}
}

func (b *bar) confirm(_ context.Context, cmd *command.Command) (bool, error) {
	answer, err := b.lines.Prompt(cmd.Title() + "? [y/N] ")
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

func (b *bar) prompt() string {
	switch b.view.Kind {
	case translate.ViewCard:
		return fmt.Sprintf("cards #%d> ", b.view.CardID)
	case translate.ViewList:
		return "cards list> "
	default:
		return "cards> "
	}
}

func (b *bar) historyPath() string {
	return filepath.Join(b.app.cfg.DataDirAbs, historyFile)
}

func (b *bar) loadHistory(state *liner.State) {
	f, err := os.Open(b.historyPath())
	if err != nil {
		return
	}

	_, _ = state.ReadHistory(f)
	_ = f.Close()
}

func (b *bar) saveHistory(state *liner.State) {
	f, err := os.Create(b.historyPath())
	if err != nil {
		return
	}

	_, _ = state.WriteHistory(f)
	_ = f.Close()
}

// viewAfter is the screen a redirect lands on.
func viewAfter(res command.RedirectResult) translate.View {
	switch {
	case strings.HasPrefix(res.Path, "/cards/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(res.Path, "/cards/"), 10, 64)
		if err == nil && id > 0 {
			return translate.View{Kind: translate.ViewCard, CardID: id}
		}
	case res.Path == "/cards":
		f, err := filter.FromParams(res.Params)
		if err == nil {
			return translate.View{Kind: translate.ViewList, Filter: f.Normalize()}
		}
	case res.Path == "/search":
		if q := res.Params.Get("q"); q != "" {
			return translate.View{Kind: translate.ViewList, Filter: filter.Context{Terms: []string{q}}}
		}
	}

	return translate.View{Kind: translate.ViewNone}
}
