package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/capitalize-ai/playlist-assistant/internal/app"
	"github.com/capitalize-ai/playlist-assistant/internal/config"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

// Runner holds the dependencies for CLI commands and provides one method per action.
type Runner struct {
	config *config.Config
	logger *logger.Logger
	input  io.Reader
	output io.Writer
	open   func(ctx context.Context) (*app.App, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *config.Config
	Logger *logger.Logger
	Input  io.Reader
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config: opts.Config,
		logger: opts.Logger,
		input:  opts.Input,
		output: opts.Output,
	}
	r.open = func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, r.config, r.logger)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		chatCommand, playlistsCommand, eventsCommand, migrateCommand, tokenCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func ownerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "owner",
		Aliases:  []string{"o"},
		Usage:    "Owner (JWT subject) whose playlists to use",
		Required: true,
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := fmt.Fprintf(r.output, "%s\n", output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
