package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/capitalize-ai/playlist-assistant/internal/service"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps orchestrator errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "content cannot be empty")
	case errors.Is(err, service.ErrNoPlaylistSelected):
		writeError(w, http.StatusBadRequest, "no playlist selected")
	case errors.Is(err, service.ErrPlaylistNotFound):
		writeError(w, http.StatusNotFound, "playlist not found")
	case errors.Is(err, service.ErrTurnInFlight):
		writeError(w, http.StatusConflict, "a turn is already in progress")
	case errors.Is(err, service.ErrTurnDiscarded):
		writeError(w, http.StatusConflict, "turn discarded after selection change")
	case errors.Is(err, service.ErrPersistenceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "persistence unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
