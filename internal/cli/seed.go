package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/agent-cards/internal/store"
)

// seedCmd returns the seed command.
func seedCmd(a *app) *Command {
	return &Command{
		Usage: "seed <file>",
		Short: "Load users, collections and cards from a JSONC file",
		Long: "Load users, workflows, collections and cards from a JSONC seed file in one transaction. " +
			"Users, workflows and collections are matched by name, so seeding twice does not duplicate them.",
		Exec: func(ctx context.Context, io *IO, call *Call) error {
			return execSeed(ctx, io, a, call.Args)
		},
	}
}

func execSeed(ctx context.Context, io *IO, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: seed needs exactly one file", ErrArgsRequired)
	}

	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.cfg.EffectiveCwd, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}

	data, err := store.ParseSeed(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	res, err := s.Seed(ctx, data)
	if err != nil {
		return err
	}

	io.Printf("seeded %d users, %d collections, %d cards\n", res.Users, res.Collections, res.Cards)

	return nil
}
