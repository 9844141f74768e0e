package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of playlist event.
type EventType string

const (
	EventTypePlaylistCreated  EventType = "playlist_created"
	EventTypePlaylistRenamed  EventType = "playlist_renamed"
	EventTypeTurnCompleted    EventType = "turn_completed"
	EventTypeGenerationFailed EventType = "generation_failed"
	EventTypeTurnDiscarded    EventType = "turn_discarded"
)

// PlaylistEvent is published after a state change on a playlist.
type PlaylistEvent struct {
	ID         string         `json:"id"`
	PlaylistID string         `json:"playlist_id"`
	OwnerID    string         `json:"owner_id"`
	Type       EventType      `json:"type"`
	Reason     string         `json:"reason,omitempty"`
	SongCount  int            `json:"song_count,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewPlaylistEvent creates an event stamped with a time-ordered id.
func NewPlaylistEvent(eventType EventType, ownerID, playlistID string) *PlaylistEvent {
	return &PlaylistEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		PlaylistID: playlistID,
		OwnerID:    ownerID,
		Type:       eventType,
		CreatedAt:  time.Now().UTC(),
	}
}
