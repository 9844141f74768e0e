package service

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistenceUnavailable wraps any failed Persistence Service call.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrTurnInFlight rejects a turn submitted while another is being processed.
	ErrTurnInFlight = errors.New("a turn is already in flight")

	// ErrEmptyMessage rejects a blank user turn.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTurnDiscarded is returned when the selection changed while the turn was in flight.
	ErrTurnDiscarded = errors.New("turn discarded after selection change")

	// ErrPlaylistNotFound is returned when selecting a playlist the owner does not have.
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrNoPlaylistSelected is returned by operations that need a selected playlist.
	ErrNoPlaylistSelected = errors.New("no playlist selected")
)

// SessionIntegrityError reports a stored turn that could not be decoded during rehydration.
type SessionIntegrityError struct {
	PlaylistID string
	Index      int
	Err        error
}

func (e *SessionIntegrityError) Error() string {
	return fmt.Sprintf("playlist %s: dropping stored turn %d: %v", e.PlaylistID, e.Index, e.Err)
}

func (e *SessionIntegrityError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistenceUnavailable, err)
}
