package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
)

//go:embed sql/sqlite_schema.sql
var sqliteSchema string

// SQLite is a single-file Store for local runs and the operator CLI.
// Timestamps are stored as unix nanoseconds.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens the database at path. The path can be ":memory:".
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if strings.HasPrefix(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Migrate applies the embedded schema.
func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// CreatePlaylist inserts a playlist with a time-ordered id.
func (s *SQLite) CreatePlaylist(ctx context.Context, ownerID, title string) (*model.Playlist, error) {
	p := &model.Playlist{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO playlists (id, user_id, title, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.OwnerID, p.Title, p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting playlist: %w", err)
	}

	return p, nil
}

// UpdatePlaylistTitle renames a playlist.
func (s *SQLite) UpdatePlaylistTitle(ctx context.Context, playlistID, title string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE playlists SET title = ? WHERE id = ?", title, playlistID)
	if err != nil {
		return fmt.Errorf("updating playlist title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating playlist title: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPlaylists returns the owner's playlists, newest first.
func (s *SQLite) ListPlaylists(ctx context.Context, ownerID string) ([]model.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at
		FROM playlists
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]model.Playlist, 0)
	for rows.Next() {
		var (
			p       model.Playlist
			created int64
		)
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &created); err != nil {
			return nil, fmt.Errorf("scanning playlist: %w", err)
		}
		p.CreatedAt = time.Unix(0, created).UTC()
		playlists = append(playlists, p)
	}

	return playlists, rows.Err()
}

// InsertSongs appends songs inside one transaction.
func (s *SQLite) InsertSongs(ctx context.Context, playlistID string, songs model.SongList) error {
	if len(songs) == 0 {
		return nil
	}

	created := s.now().UnixNano()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO songs (playlist_id, title, artist, created_at) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, song := range songs {
			if _, err := stmt.ExecContext(ctx, playlistID, song.Title, song.Artist, created); err != nil {
				return fmt.Errorf("inserting song: %w", err)
			}
		}
		return nil
	})
}

// InsertTurns appends conversation turns inside one transaction.
func (s *SQLite) InsertTurns(ctx context.Context, playlistID string, turns []model.StoredTurn) error {
	if len(turns) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO messages (playlist_id, content, sender, is_playlist, created_at) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range turns {
			created := t.CreatedAt
			if created.IsZero() {
				created = s.now()
			}
			if _, err := stmt.ExecContext(ctx, playlistID, t.Content, string(t.Sender), t.IsPlaylist, created.UnixNano()); err != nil {
				return fmt.Errorf("inserting turn: %w", err)
			}
		}
		return nil
	})
}

// ListSongs returns a playlist's songs in insertion order.
func (s *SQLite) ListSongs(ctx context.Context, playlistID string) (model.SongList, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT title, artist FROM songs WHERE playlist_id = ? ORDER BY created_at ASC, id ASC", playlistID)
	if err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	defer rows.Close()

	songs := make(model.SongList, 0)
	for rows.Next() {
		var song model.Song
		if err := rows.Scan(&song.Title, &song.Artist); err != nil {
			return nil, fmt.Errorf("scanning song: %w", err)
		}
		songs = append(songs, song)
	}

	return songs, rows.Err()
}

// ListTurns returns a playlist's turns ordered by creation time.
func (s *SQLite) ListTurns(ctx context.Context, playlistID string) ([]model.StoredTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content, sender, is_playlist, created_at
		FROM messages
		WHERE playlist_id = ?
		ORDER BY created_at ASC, id ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	turns := make([]model.StoredTurn, 0)
	for rows.Next() {
		var (
			t       model.StoredTurn
			sender  string
			created int64
		)
		if err := rows.Scan(&t.Content, &sender, &t.IsPlaylist, &created); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Sender = model.Sender(sender)
		t.CreatedAt = time.Unix(0, created).UTC()
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// Ping checks the database handle.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() {
	s.db.Close()
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
