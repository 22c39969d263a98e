package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calvinalkan/agent-cards/internal/command"

	flag "github.com/spf13/pflag"
)

const defaultLogLimit = 20

// undoCmd returns the undo command.
func undoCmd(a *app) *Command {
	return &Command{
		AsUser: true,
		Usage:  "undo <command-id>",
		Short:  "Undo an executed command",
		Long: "Revert an executed command. Any unique prefix of the id printed by \"cards ask\" " +
			"or \"cards log\" works. Navigation and insight commands cannot be undone.",
		Exec: func(ctx context.Context, io *IO, call *Call) error {
			return execUndo(ctx, io, a, call)
		},
	}
}

func execUndo(ctx context.Context, io *IO, a *app, call *Call) error {
	if len(call.Args) != 1 {
		return fmt.Errorf("%w: undo needs exactly one command id", ErrArgsRequired)
	}

	cmd, err := a.runner(ctx, call.Store).Undo(ctx, call.User.ID, call.Args[0])
	if err != nil {
		return fmt.Errorf("the action could not be undone: %w", err)
	}

	io.Printf("undone %s %s\n", cmd.ID, cmd.Title())

	return nil
}

// logCmd returns the log command.
func logCmd(a *app) *Command {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	fs.IntP("limit", "n", defaultLogLimit, "Maximum commands to show")

	return &Command{
		Flags:  fs,
		AsUser: true,
		Usage:  "log [flags]",
		Short:  "List your recent commands",
		Long:   "List your most recent commands, newest first, with their state.",
		Exec: func(ctx context.Context, io *IO, call *Call) error {
			return execLog(ctx, io, a, fs, call)
		},
	}
}

func execLog(ctx context.Context, io *IO, a *app, fs *flag.FlagSet, call *Call) error {
	limit, _ := fs.GetInt("limit")
	if limit <= 0 {
		return errors.New("--limit must be positive")
	}

	cmds, err := a.runner(ctx, call.Store).Recent(ctx, call.User.ID, limit)
	if err != nil {
		return err
	}

	for _, cmd := range cmds {
		io.Println(formatCommandLine(cmd))
	}

	return nil
}

func formatCommandLine(cmd *command.Command) string {
	undo := ""
	if !cmd.Undoable() {
		undo = " (no undo)"
	}

	return fmt.Sprintf("%s  %s  %-8s  %s%s", cmd.ID, cmd.CreatedAt.UTC().Format(time.DateTime), cmd.State, cmd.Title(), undo)
}
