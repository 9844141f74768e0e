package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
)

// DB is the subset of *pgxpool.Pool used by Postgres. pgxmock satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Postgres is a Store backed by PostgreSQL.
type Postgres struct {
	db DB
}

// NewPostgres connects to databaseURL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: pool}, nil
}

// NewPostgresWithDB wraps an existing connection.
func NewPostgresWithDB(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the schema if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlists (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id     TEXT NOT NULL,
          title       TEXT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return fmt.Errorf("creating playlists table: %w", err)
	}

	if _, err := s.db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS songs (
          id          BIGSERIAL PRIMARY KEY,
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          title       TEXT NOT NULL,
          artist      TEXT NOT NULL,
          position    INT NOT NULL DEFAULT 0,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return fmt.Errorf("creating songs table: %w", err)
	}

	if _, err := s.db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS messages (
          id          BIGSERIAL PRIMARY KEY,
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          content     TEXT NOT NULL,
          sender      TEXT NOT NULL,
          is_playlist BOOLEAN NOT NULL DEFAULT FALSE,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return fmt.Errorf("creating messages table: %w", err)
	}

	if _, err := s.db.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_playlists_user_created ON playlists(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_songs_playlist ON songs(playlist_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_playlist ON messages(playlist_id, created_at);
	`); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	return nil
}

// CreatePlaylist inserts a playlist and returns it with its generated id.
func (s *Postgres) CreatePlaylist(ctx context.Context, ownerID, title string) (*model.Playlist, error) {
	p := &model.Playlist{OwnerID: ownerID, Title: title}

	err := s.db.QueryRow(ctx, `
		INSERT INTO playlists (user_id, title)
		VALUES ($1, $2)
		RETURNING id::text, created_at
	`, ownerID, title).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting playlist: %w", err)
	}

	return p, nil
}

// UpdatePlaylistTitle renames a playlist.
func (s *Postgres) UpdatePlaylistTitle(ctx context.Context, playlistID, title string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE playlists SET title = $2 WHERE id = $1
	`, playlistID, title)
	if err != nil {
		return fmt.Errorf("updating playlist title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPlaylists returns the owner's playlists, newest first.
func (s *Postgres) ListPlaylists(ctx context.Context, ownerID string) ([]model.Playlist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, user_id, title, created_at
		FROM playlists
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]model.Playlist, 0)
	for rows.Next() {
		var p model.Playlist
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}

	return playlists, nil
}

// InsertSongs appends songs in one statement so a batch is all or nothing.
func (s *Postgres) InsertSongs(ctx context.Context, playlistID string, songs model.SongList) error {
	if len(songs) == 0 {
		return nil
	}

	titles := make([]string, len(songs))
	artists := make([]string, len(songs))
	for i, song := range songs {
		titles[i] = song.Title
		artists[i] = song.Artist
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO songs (playlist_id, title, artist, position)
		SELECT $1, t.title, t.artist, t.position::int
		FROM unnest($2::text[], $3::text[]) WITH ORDINALITY AS t(title, artist, position)
	`, playlistID, titles, artists)
	if err != nil {
		return fmt.Errorf("inserting songs: %w", err)
	}
	return nil
}

// InsertTurns appends conversation turns in one statement.
func (s *Postgres) InsertTurns(ctx context.Context, playlistID string, turns []model.StoredTurn) error {
	if len(turns) == 0 {
		return nil
	}

	contents := make([]string, len(turns))
	senders := make([]string, len(turns))
	isPlaylist := make([]bool, len(turns))
	createdAt := make([]time.Time, len(turns))
	for i, t := range turns {
		contents[i] = t.Content
		senders[i] = string(t.Sender)
		isPlaylist[i] = t.IsPlaylist
		createdAt[i] = t.CreatedAt
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (playlist_id, content, sender, is_playlist, created_at)
		SELECT $1, t.content, t.sender, t.is_playlist, t.created_at
		FROM unnest($2::text[], $3::text[], $4::boolean[], $5::timestamptz[]) AS t(content, sender, is_playlist, created_at)
	`, playlistID, contents, senders, isPlaylist, createdAt)
	if err != nil {
		return fmt.Errorf("inserting turns: %w", err)
	}
	return nil
}

// ListSongs returns a playlist's songs in insertion order.
func (s *Postgres) ListSongs(ctx context.Context, playlistID string) (model.SongList, error) {
	rows, err := s.db.Query(ctx, `
		SELECT title, artist
		FROM songs
		WHERE playlist_id = $1
		ORDER BY created_at ASC, position ASC, id ASC
	`, playlistID)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}

	return songs, nil
}

// ListTurns returns a playlist's turns ordered by creation time.
func (s *Postgres) ListTurns(ctx context.Context, playlistID string) ([]model.StoredTurn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT content, sender, is_playlist, created_at
		FROM messages
		WHERE playlist_id = $1
		ORDER BY created_at ASC, id ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	turns := make([]model.StoredTurn, 0)
	for rows.Next() {
		var (
			t      model.StoredTurn
			sender string
		)
		if err := rows.Scan(&t.Content, &sender, &t.IsPlaylist, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Sender = model.Sender(sender)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}

	return turns, nil
}

// Ping checks database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.db.Close()
}
