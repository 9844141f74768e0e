package model

// Session is the client-visible state of one owner's conversation: the selected
// playlist (nil when none), the ordered turn log and the cached song list.
type Session struct {
	OwnerID  string    `json:"owner_id"`
	Playlist *Playlist `json:"playlist"`
	Turns    []Turn    `json:"turns"`
	Songs    SongList  `json:"songs"`
}

// NewSession returns an unselected session holding only the greeting.
func NewSession(ownerID string) *Session {
	s := &Session{OwnerID: ownerID}
	s.Reset()
	return s
}

// Reset drops the selection and returns the session to the greeting state.
func (s *Session) Reset() {
	s.Playlist = nil
	s.Turns = []Turn{GreetingTurn()}
	s.Songs = SongList{}
}

// Clone returns a deep copy safe to hand to callers.
func (s *Session) Clone() *Session {
	out := &Session{
		OwnerID: s.OwnerID,
		Turns:   make([]Turn, len(s.Turns)),
		Songs:   s.Songs.Clone(),
	}
	if s.Playlist != nil {
		p := *s.Playlist
		out.Playlist = &p
	}
	for i, t := range s.Turns {
		t.Songs = t.Songs.Clone()
		out.Turns[i] = t
	}
	return out
}

// SelectPlaylistRequest is the request to change the selected playlist. A nil or
// empty PlaylistID deselects.
type SelectPlaylistRequest struct {
	PlaylistID *string `json:"playlist_id"`
}
