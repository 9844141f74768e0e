// Package service implements the playlist conversation workflow.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/store"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
	"github.com/capitalize-ai/playlist-assistant/pkg/metrics"
)

// Truncate cuts s to the first model.MaxTitleLength characters.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= model.MaxTitleLength {
		return s
	}
	return string(r[:model.MaxTitleLength])
}

// PlaylistManager owns the Draft -> Persisted -> Renamed lifecycle of a playlist.
// It never mutates the playlists it is given.
type PlaylistManager struct {
	store   store.Store
	logger  *logger.Logger
	timeout time.Duration
}

// NewPlaylistManager creates a new playlist manager.
func NewPlaylistManager(st store.Store, log *logger.Logger, timeout time.Duration) *PlaylistManager {
	return &PlaylistManager{
		store:   st,
		logger:  log,
		timeout: timeout,
	}
}

// EnsureSelected returns current when it is persisted. Otherwise it creates a
// playlist titled from firstUserMessage.
func (m *PlaylistManager) EnsureSelected(ctx context.Context, ownerID string, current *model.Playlist, firstUserMessage string) (*model.Playlist, error) {
	if current != nil && !current.IsDraft() {
		return current, nil
	}

	title := Truncate(strings.TrimSpace(firstUserMessage))
	if title == "" {
		title = model.DefaultPlaylistTitle
	}

	return m.Create(ctx, ownerID, title)
}

// Create persists a new playlist with title.
func (m *PlaylistManager) Create(ctx context.Context, ownerID, title string) (*model.Playlist, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	p, err := m.store.CreatePlaylist(ctx, ownerID, title)
	if err != nil {
		metrics.RecordPersistenceFailure("create_playlist")
		m.logger.Error("failed to create playlist",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return nil, persistenceError("create playlist", err)
	}

	metrics.PlaylistsCreatedTotal.Inc()
	m.logger.Info("playlist created",
		zap.String("playlist_id", p.ID),
		zap.String("owner_id", ownerID),
	)

	return p, nil
}

// MaybeRetitle replaces the default title with proposed. Any other title is kept.
// On failure p is returned unchanged along with the error.
func (m *PlaylistManager) MaybeRetitle(ctx context.Context, p *model.Playlist, proposed string) (*model.Playlist, error) {
	if p == nil || p.IsDraft() || !p.HasDefaultTitle() {
		return p, nil
	}

	title := Truncate(strings.TrimSpace(proposed))
	if title == "" || title == p.Title {
		return p, nil
	}

	return m.updateTitle(ctx, p, title)
}

// Rename sets a user-chosen title. A blank title becomes model.UntitledPlaylistTitle.
func (m *PlaylistManager) Rename(ctx context.Context, p *model.Playlist, title string) (*model.Playlist, error) {
	title = Truncate(strings.TrimSpace(title))
	if title == "" {
		title = model.UntitledPlaylistTitle
	}
	if title == p.Title {
		return p, nil
	}

	return m.updateTitle(ctx, p, title)
}

func (m *PlaylistManager) updateTitle(ctx context.Context, p *model.Playlist, title string) (*model.Playlist, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if err := m.store.UpdatePlaylistTitle(ctx, p.ID, title); err != nil {
		metrics.RecordPersistenceFailure("update_playlist_title")
		m.logger.Error("failed to update playlist title",
			zap.String("playlist_id", p.ID),
			zap.Error(err),
		)
		return p, persistenceError("update playlist title", err)
	}

	updated := *p
	updated.Title = title
	return &updated, nil
}

func (m *PlaylistManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}
