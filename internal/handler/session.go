// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/internal/middleware"
	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/service"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

// SessionHandler exposes the caller's conversation session.
type SessionHandler struct {
	sessions *service.SessionManager
	logger   *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.SessionManager, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   log,
	}
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	orch := h.sessions.Get(middleware.GetOwnerID(r.Context()))
	writeJSON(w, http.StatusOK, orch.Snapshot())
}

// SubmitTurn handles POST /api/v1/session/turns
func (h *SessionHandler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SubmitTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateTurnContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orch := h.sessions.Get(middleware.GetOwnerID(ctx))
	res, err := orch.SubmitUserTurn(ctx, req.Content)
	if err != nil {
		h.logger.Warn("turn not completed",
			zap.String("owner_id", orch.OwnerID()),
			zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
			zap.Error(err),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res.Response())
}

// Select handles PUT /api/v1/session/selection
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SelectPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	playlistID := ""
	if req.PlaylistID != nil {
		playlistID = *req.PlaylistID
	}
	if err := middleware.ValidatePlaylistID(playlistID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.sessions.Get(middleware.GetOwnerID(ctx)).SelectPlaylist(ctx, playlistID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// Rename handles PUT /api/v1/session/playlist
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.RenamePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.sessions.Get(middleware.GetOwnerID(ctx)).RenameSelected(ctx, req.Title)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}
