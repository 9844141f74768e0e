package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/capitalize-ai/playlist-assistant/internal/middleware"
	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/store"
)

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List an owner's playlists, newest first",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Playlists,
	}
}

func eventsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Show the event history of a playlist (requires the nats events backend)",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.StringFlag{
				Name:     "playlist",
				Usage:    "Playlist ID",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of events",
				Value: 20,
			},
		},
		Action: r.Events,
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Create or update the database schema",
		Action: r.Migrate,
	}
}

func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a development API token",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime, 0 for no expiry",
				Value: 24 * time.Hour,
			},
		},
		Action: r.Token,
	}
}

// Playlists prints the owner's playlists.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	playlists, err := a.Sessions.Get(cmd.String("owner")).ListPlaylists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(model.ListPlaylistsResponse{Playlists: playlists, Total: len(playlists)}, true)
	}
	r.printPlaylists(playlists)
	return nil
}

// Events prints the event history of a playlist.
func (r *Runner) Events(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.History == nil {
		return fmt.Errorf("events backend %q keeps no history", r.config.EventsBackend)
	}

	events, err := a.History.History(ctx, cmd.String("owner"), cmd.String("playlist"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	for _, e := range events {
		r.writePlain("%s  %-18s %s\n", e.CreatedAt.Format(time.RFC3339), e.Type, e.Reason)
	}
	return nil
}

// Migrate applies the store schema.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	s, err := store.Open(ctx, store.Options{
		Driver:      store.Driver(r.config.StoreDriver),
		DatabaseURL: r.config.DatabaseURL,
		SQLitePath:  r.config.SQLitePath,
		AutoMigrate: true,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if _, ok := s.(store.Migrator); !ok {
		r.writePlain("%s store has no schema\n", r.config.StoreDriver)
		return nil
	}
	r.writePlain("%s schema is up to date\n", r.config.StoreDriver)
	return nil
}

// Token prints a signed API token for the owner.
func (r *Runner) Token(ctx context.Context, cmd *cli.Command) error {
	token, err := middleware.IssueToken(r.config.JWTSecret, cmd.String("owner"), cmd.Duration("ttl"))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	return r.writePlain("%s\n", token)
}

func (r *Runner) printPlaylists(playlists []model.Playlist) {
	if len(playlists) == 0 {
		r.writePlain("no playlists\n")
		return
	}
	for _, p := range playlists {
		r.writePlain("%s  %s  %s\n", p.ID, p.CreatedAt.Format("2006-01-02 15:04"), p.Title)
	}
}
