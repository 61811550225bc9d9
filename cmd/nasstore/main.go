// Command nasstore drives the storage engine from the local filesystem: one
// process, one home directory, no server to run first.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"nasstore/cmd/nasstore/cli"
	"nasstore/internal/logging"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	root := cli.NewRootCommand(logger)
	root.Version = version
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
