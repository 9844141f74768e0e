package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sender identifies who authored a turn.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// GreetingText opens every conversation that has no stored turns.
const GreetingText = "Hi! I'm your playlist assistant. Tell me what kind of music you like..."

// Turn is one message in a conversation. When IsPlaylist is set the content is
// Songs, otherwise Text.
type Turn struct {
	Text       string
	Songs      SongList
	Sender     Sender
	IsPlaylist bool
	CreatedAt  time.Time
}

// NewUserTurn creates a turn authored by the user.
func NewUserTurn(text string) Turn {
	return Turn{Text: text, Sender: SenderUser, CreatedAt: time.Now()}
}

// NewBotTextTurn creates a plain text turn authored by the assistant.
func NewBotTextTurn(text string) Turn {
	return Turn{Text: text, Sender: SenderBot, CreatedAt: time.Now()}
}

// NewBotPlaylistTurn creates an assistant turn carrying a song list.
func NewBotPlaylistTurn(songs SongList) Turn {
	return Turn{Songs: songs.Clone(), Sender: SenderBot, IsPlaylist: true, CreatedAt: time.Now()}
}

// GreetingTurn returns the canonical opening turn.
func GreetingTurn() Turn {
	return Turn{Text: GreetingText, Sender: SenderBot}
}

type turnJSON struct {
	Text       json.RawMessage `json:"text"`
	Sender     Sender          `json:"sender"`
	IsPlaylist bool            `json:"isPlaylist"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
}

// MarshalJSON encodes the turn with text holding either a string or a song array.
func (t Turn) MarshalJSON() ([]byte, error) {
	var (
		text []byte
		err  error
	)
	if t.IsPlaylist {
		songs := t.Songs
		if songs == nil {
			songs = SongList{}
		}
		text, err = json.Marshal(songs)
	} else {
		text, err = json.Marshal(t.Text)
	}
	if err != nil {
		return nil, err
	}

	out := turnJSON{Text: text, Sender: t.Sender, IsPlaylist: t.IsPlaylist}
	if !t.CreatedAt.IsZero() {
		out.CreatedAt = &t.CreatedAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var in turnJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*t = Turn{Sender: in.Sender, IsPlaylist: in.IsPlaylist}
	if in.CreatedAt != nil {
		t.CreatedAt = *in.CreatedAt
	}
	if in.IsPlaylist {
		if err := json.Unmarshal(in.Text, &t.Songs); err != nil {
			return fmt.Errorf("decoding playlist turn: %w", err)
		}
		return nil
	}
	return json.Unmarshal(in.Text, &t.Text)
}

// StoredTurn is the persisted form of a turn. Playlist content is kept as an
// encoded song list in Content.
type StoredTurn struct {
	Content    string    `json:"content"`
	Sender     Sender    `json:"sender"`
	IsPlaylist bool      `json:"is_playlist"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmitTurnRequest is the request to submit a user turn.
type SubmitTurnRequest struct {
	Content string `json:"content"`
}

// TurnResponse is the response after a user turn has been processed.
type TurnResponse struct {
	UserTurn Turn      `json:"user_turn"`
	BotTurn  Turn      `json:"bot_turn"`
	Outcome  string    `json:"outcome"`
	Playlist *Playlist `json:"playlist,omitempty"`
	Songs    SongList  `json:"songs"`
}
