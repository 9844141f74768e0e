package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/internal/middleware"
	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/service"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

// EventHistory reads back published playlist events.
type EventHistory interface {
	History(ctx context.Context, ownerID, playlistID string, limit int) ([]model.PlaylistEvent, error)
}

// PlaylistHandler handles playlist endpoints.
type PlaylistHandler struct {
	sessions *service.SessionManager
	history  EventHistory
	logger   *logger.Logger
}

// NewPlaylistHandler creates a new playlist handler. history may be nil when
// the events backend keeps no history.
func NewPlaylistHandler(sessions *service.SessionManager, history EventHistory, log *logger.Logger) *PlaylistHandler {
	return &PlaylistHandler{
		sessions: sessions,
		history:  history,
		logger:   log,
	}
}

// List handles GET /api/v1/playlists
func (h *PlaylistHandler) List(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.sessions.Get(middleware.GetOwnerID(r.Context())).ListPlaylists(r.Context())
	if err != nil {
		h.logger.Error("failed to list playlists", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	if playlists == nil {
		playlists = []model.Playlist{}
	}
	writeJSON(w, http.StatusOK, model.ListPlaylistsResponse{
		Playlists: playlists,
		Total:     len(playlists),
	})
}

// Create handles POST /api/v1/playlists. The new playlist becomes the
// session's selection.
func (h *PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(middleware.GetOwnerID(r.Context())).NewPlaylist(r.Context())
	if err != nil {
		h.logger.Error("failed to create playlist", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// Events handles GET /api/v1/playlists/{id}/events
func (h *PlaylistHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "id")

	if err := middleware.ValidatePlaylistID(playlistID); err != nil || playlistID == "" {
		writeError(w, http.StatusBadRequest, "invalid playlist ID format")
		return
	}

	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "event history not enabled")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := h.history.History(ctx, middleware.GetOwnerID(ctx), playlistID, limit)
	if err != nil {
		h.logger.Error("failed to read event history",
			zap.String("playlist_id", playlistID),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, "event history unavailable")
		return
	}

	if events == nil {
		events = []model.PlaylistEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
