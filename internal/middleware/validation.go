package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTurnLength bounds the size of a submitted user turn.
const MaxTurnLength = 4000

// ValidateTurnContent validates the text of a user turn.
func ValidateTurnContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > MaxTurnLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidatePlaylistID validates a playlist ID. The empty ID is valid and means
// no selection.
func ValidatePlaylistID(id string) error {
	if id == "" {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid playlist ID format")
	}
	return nil
}

// ValidateTitle validates a playlist title. Titles over the display limit are
// accepted and truncated later.
func ValidateTitle(title string) error {
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}
