// Package main provides cards, a natural-language command bar for cards.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/calvinalkan/agent-cards/internal/cli"
)

func main() {
	// The first signal cancels the running command; stop restores the
	// default handling so a second one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()
	}()

	exitCode := cli.Run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args, cli.Environ(os.Environ()))

	stop()
	os.Exit(exitCode)
}
