package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
)

type memoryPlaylist struct {
	playlist model.Playlist
	seq      int
	songs    model.SongList
	turns    []model.StoredTurn
}

// Memory is an in-process Store used for development and tests.
type Memory struct {
	mu        sync.RWMutex
	playlists map[string]*memoryPlaylist
	seq       int
	now       func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		playlists: make(map[string]*memoryPlaylist),
		now:       time.Now,
	}
}

// CreatePlaylist stores a new playlist.
func (m *Memory) CreatePlaylist(ctx context.Context, ownerID, title string) (*model.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	p := model.Playlist{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: m.now().UTC(),
	}
	m.playlists[p.ID] = &memoryPlaylist{playlist: p, seq: m.seq}

	return &p, nil
}

// UpdatePlaylistTitle renames a playlist.
func (m *Memory) UpdatePlaylistTitle(ctx context.Context, playlistID, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.playlists[playlistID]
	if !ok {
		return ErrNotFound
	}
	p.playlist.Title = title
	return nil
}

// ListPlaylists returns the owner's playlists, newest first.
func (m *Memory) ListPlaylists(ctx context.Context, ownerID string) ([]model.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	owned := make([]*memoryPlaylist, 0)
	for _, p := range m.playlists {
		if p.playlist.OwnerID == ownerID {
			owned = append(owned, p)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].seq > owned[j].seq })

	out := make([]model.Playlist, len(owned))
	for i, p := range owned {
		out[i] = p.playlist
	}
	return out, nil
}

// InsertSongs appends songs to a playlist.
func (m *Memory) InsertSongs(ctx context.Context, playlistID string, songs model.SongList) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.playlists[playlistID]
	if !ok {
		return ErrNotFound
	}
	p.songs = append(p.songs, songs...)
	return nil
}

// InsertTurns appends turns to a playlist's conversation.
func (m *Memory) InsertTurns(ctx context.Context, playlistID string, turns []model.StoredTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.playlists[playlistID]
	if !ok {
		return ErrNotFound
	}
	p.turns = append(p.turns, turns...)
	return nil
}

// ListSongs returns a playlist's songs.
func (m *Memory) ListSongs(ctx context.Context, playlistID string) (model.SongList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.playlists[playlistID]
	if !ok {
		return model.SongList{}, nil
	}
	return p.songs.Clone(), nil
}

// ListTurns returns a playlist's turns ordered by creation time.
func (m *Memory) ListTurns(ctx context.Context, playlistID string) ([]model.StoredTurn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.playlists[playlistID]
	if !ok {
		return []model.StoredTurn{}, nil
	}
	out := make([]model.StoredTurn, len(p.turns))
	copy(out, p.turns)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (m *Memory) Close() {}
