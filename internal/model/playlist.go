// Package model defines data structures for the playlist assistant.
package model

import (
	"time"
)

const (
	// DefaultPlaylistTitle marks a playlist created without a meaningful title.
	DefaultPlaylistTitle = "New Playlist"

	// UntitledPlaylistTitle is used when a rename is submitted with a blank title.
	UntitledPlaylistTitle = "Untitled Playlist"

	// MaxTitleLength is the number of characters a playlist title is cut to.
	MaxTitleLength = 50
)

// Song is a single playlist entry.
type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// SongList is an ordered collection of songs in playback order.
type SongList []Song

// Clone returns an independent copy of the list. A nil list clones to an empty one.
func (l SongList) Clone() SongList {
	out := make(SongList, len(l))
	copy(out, l)
	return out
}

// Playlist represents a user's playlist. An empty ID denotes a draft that has
// not been durably created yet.
type Playlist struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// IsDraft reports whether the playlist has not been persisted.
func (p *Playlist) IsDraft() bool {
	return p.ID == ""
}

// HasDefaultTitle reports whether the playlist still carries the default title.
func (p *Playlist) HasDefaultTitle() bool {
	return p.Title == DefaultPlaylistTitle
}

// ListPlaylistsResponse is the response for listing playlists.
type ListPlaylistsResponse struct {
	Playlists []Playlist `json:"playlists"`
	Total     int        `json:"total"`
}

// RenamePlaylistRequest is the request to rename the selected playlist.
type RenamePlaylistRequest struct {
	Title string `json:"title"`
}
