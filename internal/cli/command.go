package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/store"
	"github.com/calvinalkan/agent-cards/internal/translate"

	flag "github.com/spf13/pflag"
)

// exitInterrupted is the exit code after SIGINT or SIGTERM.
const exitInterrupted = 130

const viewHelp = "Screen the request is made from: card:<id>, list or list:<query>"

// Command is one cards subcommand.
type Command struct {
	// Flags holds command-specific flags. The FlagSet name is not used.
	Flags *flag.FlagSet

	// Usage follows "cards" in help, starting with the command name.
	Usage string

	// Short is the line shown in the global usage listing.
	Short string

	// Long is shown by "cards <cmd> --help". Short is used when empty.
	Long string

	// AsUser opens the store and resolves the acting user before Exec.
	AsUser bool

	// WithView adds --view; Exec gets it parsed in [Call.View].
	WithView bool

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, call *Call) error

	app *app
}

// Call is what a command runs with: positional args and, depending on the
// command, the store, the acting user and the screen the request comes from.
type Call struct {
	Args  []string
	Store *store.Store
	User  store.User
	View  translate.View
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "cards <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: cards", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	fs := c.flags()
	if fs.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		fs.SetOutput(&buf)
		fs.PrintDefaults()
		o.Printf("%s", buf.String())
	}

	if c.AsUser {
		o.Println()
		o.Println("Acts as the user from --user, CARDS_USER or the config file.")
	}
}

// Run parses flags, prepares the call and executes the command. Returns
// the exit code; errors are printed here so output stays in order.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	fs := c.flags()
	fs.SetOutput(&strings.Builder{}) // discard pflag output

	err := fs.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	call, err := c.prepare(ctx, fs.Args())
	if err == nil {
		err = c.Exec(ctx, o, call)
	}

	if err != nil {
		if ctx.Err() != nil {
			o.ErrPrintln("error: interrupted")
			return exitInterrupted
		}

		o.ErrPrintln("error:", err)

		return 1
	}

	return 0
}

func (c *Command) flags() *flag.FlagSet {
	if c.Flags == nil {
		c.Flags = flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	}

	if c.WithView && c.Flags.Lookup("view") == nil {
		c.Flags.String("view", "", viewHelp)
	}

	return c.Flags
}

func (c *Command) prepare(ctx context.Context, args []string) (*Call, error) {
	call := &Call{Args: args}

	if c.WithView {
		raw, _ := c.Flags.GetString("view")

		view, err := parseView(raw)
		if err != nil {
			return nil, err
		}

		call.View = view
	}

	if c.AsUser {
		s, user, err := c.app.user(ctx)
		if err != nil {
			return nil, err
		}

		call.Store = s
		call.User = user
	}

	return call, nil
}
