// Package store implements the Persistence Service for playlists, songs and
// conversation turns.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
)

// ErrNotFound is returned when a playlist does not exist.
var ErrNotFound = errors.New("playlist not found")

// Store is the Persistence Service contract.
type Store interface {
	CreatePlaylist(ctx context.Context, ownerID, title string) (*model.Playlist, error)
	UpdatePlaylistTitle(ctx context.Context, playlistID, title string) error
	// ListPlaylists returns the owner's playlists, newest first.
	ListPlaylists(ctx context.Context, ownerID string) ([]model.Playlist, error)
	InsertSongs(ctx context.Context, playlistID string, songs model.SongList) error
	InsertTurns(ctx context.Context, playlistID string, turns []model.StoredTurn) error
	// ListSongs returns songs in insertion order.
	ListSongs(ctx context.Context, playlistID string) (model.SongList, error)
	// ListTurns returns turns ordered by creation time.
	ListTurns(ctx context.Context, playlistID string) ([]model.StoredTurn, error)
	Ping(ctx context.Context) error
	Close()
}

// Migrator is implemented by stores that own a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Driver names a Store implementation.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMemory   Driver = "memory"
)

// Options selects and configures a Store.
type Options struct {
	Driver      Driver
	DatabaseURL string
	SQLitePath  string
	AutoMigrate bool
}

// Open creates the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)

	switch opts.Driver {
	case DriverPostgres:
		s, err = NewPostgres(ctx, opts.DatabaseURL)
	case DriverSQLite:
		s, err = NewSQLite(opts.SQLitePath)
	case DriverMemory, "":
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if m, ok := s.(Migrator); ok && opts.AutoMigrate {
		if err := m.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrating %s store: %w", opts.Driver, err)
		}
	}

	return s, nil
}
