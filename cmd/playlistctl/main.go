// Package main is the operator CLI for the playlist assistant.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/internal/config"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, "stderr")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	runner := NewRunner(RunnerOpts{
		Config: cfg,
		Logger: log,
	})

	cmd := &cli.Command{
		Name:     "playlistctl",
		Usage:    "Chat with the playlist assistant and manage its data",
		Commands: runner.register(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
