package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/agent-cards/internal/command"
	"github.com/calvinalkan/agent-cards/internal/translate"
)

// ErrNotConfirmed is returned when the user declines a command that needs
// confirmation.
var ErrNotConfirmed = errors.New("command not confirmed")

// ConfirmFunc asks the user whether cmd should run.
type ConfirmFunc func(ctx context.Context, cmd *command.Command) (bool, error)

// Outcome is one executed command and what it produced.
type Outcome struct {
	Command *command.Command
	Result  command.Result
}

// Dispatcher parses input and executes the resulting commands in order.
type Dispatcher struct {
	parser  *Parser
	runner  *command.Runner
	confirm ConfirmFunc
}

// NewDispatcher returns a Dispatcher. A nil confirm runs every command
// without asking.
func NewDispatcher(parser *Parser, runner *command.Runner, confirm ConfirmFunc) *Dispatcher {
	return &Dispatcher{parser: parser, runner: runner, confirm: confirm}
}

// Run parses input and executes its commands one after another, stopping at
// the first failure. Outcomes of commands that already ran are returned
// alongside the error.
func (d *Dispatcher) Run(ctx context.Context, req translate.Request, input string) ([]Outcome, error) {
	plan, err := d.parser.Parse(ctx, req, input)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(plan.Commands))

	for _, cmd := range plan.Commands {
		err = d.confirmed(ctx, cmd)
		if err != nil {
			return outcomes, err
		}

		res, err := d.runner.Execute(ctx, cmd)
		if err != nil {
			return outcomes, err
		}

		outcomes = append(outcomes, Outcome{Command: cmd, Result: res})
	}

	return outcomes, nil
}

func (d *Dispatcher) confirmed(ctx context.Context, cmd *command.Command) error {
	if d.confirm == nil {
		return nil
	}

	needed, err := d.runner.NeedsConfirmation(ctx, cmd)
	if err != nil || !needed {
		return err
	}

	ok, err := d.confirm(ctx, cmd)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, cmd.Title())
	}

	return nil
}
