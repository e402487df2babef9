// Package cli wires the bot's single long-running command: process
// bootstrap is the caller's job (cmd/pongbot/main.go constructs every
// collaborator), this package only owns command registration and the
// signal-driven graceful shutdown around runloop.RunLoop.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/pingpongbot/pongbot/internal/pkg/logger"
	"github.com/pingpongbot/pongbot/internal/runloop"
)

// Run builds and executes the CLI application around rl. There is exactly
// one command ("run") because the bot has exactly one long-running mode
// (spec §6: "one long-running process, no CLI subcommands").
func Run(ctx context.Context, rl runloop.RunLoop) error {
	app := &cli.Command{
		Name:        "pongbot",
		Description: "Watches for Ping events and answers each one with exactly one Pong.",
		Usage:       "pongbot run",
		Commands: []*cli.Command{
			runCommand(rl),
		},
	}

	return app.Run(ctx, os.Args)
}

// runCommand returns the command that starts the run loop and blocks until
// a termination signal arrives, then waits for the in-flight iteration to
// finish before returning.
func runCommand(rl runloop.RunLoop) *cli.Command {
	return &cli.Command{
		Name:        "run",
		Description: "Starts the iterate-then-sleep loop and runs until terminated.",
		Usage:       "Runs the bot. Terminates gracefully on SIGTERM, SIGINT or SIGHUP.",
		Action: func(ctx context.Context, c *cli.Command) error {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
			defer signal.Stop(quit)

			if err := rl.Start(ctx); err != nil {
				return err
			}

			sig := <-quit
			logger.Info(ctx, "cli: shutdown signal received, waiting for in-flight iteration", "signal", sig.String())

			return rl.Stop(context.Background())
		},
	}
}
