// Package songlist validates candidate song lists and owns their stored encoding.
package songlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
)

// ErrMalformedSong is matched by every validation failure.
var ErrMalformedSong = errors.New("malformed song")

// ValidationError describes why a candidate was rejected. Index is -1 when the
// candidate itself is not a sequence.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed song list: %s", e.Reason)
	}
	return fmt.Sprintf("malformed song at index %d: %s", e.Index, e.Reason)
}

// Is lets errors.Is match ErrMalformedSong.
func (e *ValidationError) Is(target error) bool {
	return target == ErrMalformedSong
}

// Validate checks that candidate is a sequence of objects with non-empty title and
// artist fields and returns the normalized list. An empty sequence is valid.
func Validate(candidate any) (model.SongList, error) {
	switch v := candidate.(type) {
	case []any:
		songs := make(model.SongList, 0, len(v))
		for i, elem := range v {
			song, err := validateElement(i, elem)
			if err != nil {
				return nil, err
			}
			songs = append(songs, song)
		}
		return songs, nil
	case model.SongList:
		return validateSongs(v)
	case []model.Song:
		return validateSongs(v)
	default:
		return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("expected a sequence, got %T", candidate)}
	}
}

func validateSongs(in []model.Song) (model.SongList, error) {
	songs := make(model.SongList, 0, len(in))
	for i, s := range in {
		title := strings.TrimSpace(s.Title)
		artist := strings.TrimSpace(s.Artist)
		if title == "" {
			return nil, &ValidationError{Index: i, Reason: "empty title"}
		}
		if artist == "" {
			return nil, &ValidationError{Index: i, Reason: "empty artist"}
		}
		songs = append(songs, model.Song{Title: title, Artist: artist})
	}
	return songs, nil
}

func validateElement(i int, elem any) (model.Song, error) {
	obj, ok := elem.(map[string]any)
	if !ok {
		return model.Song{}, &ValidationError{Index: i, Reason: fmt.Sprintf("expected an object, got %T", elem)}
	}

	title, ok := coerce(obj["title"])
	if !ok || title == "" {
		return model.Song{}, &ValidationError{Index: i, Reason: "missing or empty title"}
	}
	artist, ok := coerce(obj["artist"])
	if !ok || artist == "" {
		return model.Song{}, &ValidationError{Index: i, Reason: "missing or empty artist"}
	}

	return model.Song{Title: title, Artist: artist}, nil
}

// coerce converts scalar JSON values to a trimmed string.
func coerce(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// Encode serializes a song list for storage in a conversation turn.
func Encode(songs model.SongList) (string, error) {
	if songs == nil {
		songs = model.SongList{}
	}
	data, err := json.Marshal(songs)
	if err != nil {
		return "", fmt.Errorf("encoding song list: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored song list and validates it.
func Decode(content string) (model.SongList, error) {
	var raw any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decoding song list: %w", err)
	}
	return Validate(raw)
}
