package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/agent-cards/internal/config"
)

// initCmd returns the init command.
func initCmd(a *app) *Command {
	return &Command{
		Usage: "init",
		Short: "Create .cards.json and an empty store",
		Long: "Write a commented default .cards.json to the working directory and create the card store " +
			"in its data directory. An existing config file is left alone.",
		Exec: func(ctx context.Context, io *IO, _ *Call) error {
			return execInit(ctx, io, a)
		},
	}
}

func execInit(ctx context.Context, io *IO, a *app) error {
	path, err := config.WriteDefault(a.cfg.EffectiveCwd)

	switch {
	case errors.Is(err, config.ErrExists):
		io.Println("keeping", path)
	case err != nil:
		return err
	default:
		io.Println("wrote", path)
	}

	s, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	io.Println("store ready in", s.Dir())

	return nil
}
