// Package cli implements the cards command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/calvinalkan/agent-cards/internal/config"
)

const (
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

// Errors for global flag parsing.
var (
	ErrFlagRequiresArg = errors.New("flag requires an argument")
	ErrUnknownFlag     = errors.New("unknown flag")
)

// Run is the main entry point. Canceling ctx (SIGINT, SIGTERM) stops the
// running command. Returns the exit code.
func Run(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string, env map[string]string) int {
	return RunWith(ctx, in, out, errOut, args, env, Deps{})
}

// RunWith is [Run] with collaborators supplied by the caller.
func RunWith(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string, env map[string]string, deps Deps) int {
	flags, err := parseGlobalFlags(args[min(1, len(args)):])
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, commands(nil, nil))

		return 1
	}

	if len(flags.remaining) == 0 || flags.remaining[0] == "-h" || flags.remaining[0] == helpFlag {
		printUsage(out, commands(nil, nil))

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		DataDirOverride: flags.dataDir,
		UserOverride:    flags.user,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a, err := newApp(cfg, deps, writeSyncer(errOut))
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}
	defer a.close()

	a.terminal = in == os.Stdin

	ioCtx := NewIO(in, out, errOut)
	cmds := commands(a, &cfg)

	name := flags.remaining[0]

	cmd, ok := cmds[name]
	if !ok {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, cmds)

		return 1
	}

	code := cmd.Run(ctx, ioCtx, flags.remaining[1:])
	if code != 0 {
		return code
	}

	return ioCtx.Finish()
}

// commandOrder is the order of the usage listing.
var commandOrder = []string{"init", "seed", "ask", "translate", "undo", "log", "ls", "bar", "print-config"}

func commands(a *app, cfg *config.Config) map[string]*Command {
	list := []*Command{
		initCmd(a),
		seedCmd(a),
		askCmd(a),
		translateCmd(a),
		undoCmd(a),
		logCmd(a),
		lsCmd(a),
		barCmd(a),
		PrintConfigCmd(cfg),
	}

	byName := make(map[string]*Command, len(list))
	for _, c := range list {
		c.app = a
		byName[c.Name()] = c
	}

	return byName
}

func printUsage(w io.Writer, cmds map[string]*Command) {
	fprintln(w, "cards - a command bar for cards")
	fprintln(w)
	fprintln(w, "Usage: cards [global flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, "  -C, --cwd <dir>        Run as if started in <dir>")
	fprintln(w, "  -c, --config <file>    Use this config file instead of .cards.json")
	fprintln(w, "      --data-dir <dir>   Override the data directory")
	fprintln(w, "  -u, --user <name>      Act as this user")
	fprintln(w)
	fprintln(w, "Commands:")

	for _, name := range commandOrder {
		fprintln(w, cmds[name].HelpLine())
	}
}

// Environ turns KEY=value pairs, as from [os.Environ], into the env map
// [Run] takes. Later duplicates win.
func Environ(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))

	for _, e := range pairs {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	return env
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

type globalFlags struct {
	workDir    string
	configPath string
	dataDir    string
	user       string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	type valueFlag struct {
		short, long string
		dst         *string
	}

	valueFlags := []valueFlag{
		{"-C", "--cwd", &flags.workDir},
		{"-c", "--config", &flags.configPath},
		{"", "--data-dir", &flags.dataDir},
		{"-u", "--user", &flags.user},
	}

	for _, f := range valueFlags {
		if arg == f.long || (f.short != "" && arg == f.short) {
			if idx+1 >= len(args) {
				return consumedNone, fmt.Errorf("%w: %s", ErrFlagRequiresArg, arg)
			}

			*f.dst = args[idx+1]

			return consumedTwo, nil
		}

		if after, ok := strings.CutPrefix(arg, f.long+"="); ok {
			*f.dst = after

			return consumedOne, nil
		}

		if f.short != "" && len(arg) > len(f.short) && strings.HasPrefix(arg, f.short) && !strings.HasPrefix(arg, "--") {
			*f.dst = arg[len(f.short):]

			return consumedOne, nil
		}
	}

	// -h/--help flags
	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	// Unknown flag
	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", ErrUnknownFlag, arg)
	}

	// Not a flag
	return consumedNone, nil
}
