package service

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/songlist"
	"github.com/capitalize-ai/playlist-assistant/internal/store"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
	"github.com/capitalize-ai/playlist-assistant/pkg/metrics"
)

// ConversationStore keeps the in-memory turn log in step with the Persistence Service.
type ConversationStore struct {
	store   store.Store
	logger  *logger.Logger
	timeout time.Duration
}

// NewConversationStore creates a new conversation store.
func NewConversationStore(st store.Store, log *logger.Logger, timeout time.Duration) *ConversationStore {
	return &ConversationStore{
		store:   st,
		logger:  log,
		timeout: timeout,
	}
}

// Append adds turns to the session in order. Playlist turns extend the cached
// song list in the same call.
func (c *ConversationStore) Append(sess *model.Session, turns ...model.Turn) {
	for _, t := range turns {
		if t.IsPlaylist {
			t.Songs = t.Songs.Clone()
			sess.Songs = append(sess.Songs, t.Songs...)
		}
		sess.Turns = append(sess.Turns, t)
	}
}

// Rehydrate rebuilds the turn log and song cache of a playlist. Undecodable
// playlist turns are dropped. A playlist without turns yields the greeting.
func (c *ConversationStore) Rehydrate(ctx context.Context, playlistID string) ([]model.Turn, model.SongList, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stored, err := c.store.ListTurns(ctx, playlistID)
	if err != nil {
		metrics.RecordPersistenceFailure("list_turns")
		return nil, nil, persistenceError("list turns", err)
	}

	turns := make([]model.Turn, 0, len(stored))
	songs := model.SongList{}
	for i, st := range stored {
		t, err := FromStored(st)
		if err != nil {
			c.logger.Warn("session integrity error",
				zap.String("playlist_id", playlistID),
				zap.Error(&SessionIntegrityError{PlaylistID: playlistID, Index: i, Err: err}),
			)
			continue
		}
		if t.IsPlaylist {
			songs = append(songs, t.Songs...)
		}
		turns = append(turns, t)
	}

	if len(turns) == 0 {
		return []model.Turn{model.GreetingTurn()}, model.SongList{}, nil
	}

	persisted, err := c.store.ListSongs(ctx, playlistID)
	switch {
	case err != nil:
		metrics.RecordPersistenceFailure("list_songs")
		c.logger.Warn("failed to list songs during rehydration",
			zap.String("playlist_id", playlistID),
			zap.Error(err),
		)
	case !reflect.DeepEqual(persisted, songs):
		c.logger.Warn("stored songs diverge from conversation",
			zap.String("playlist_id", playlistID),
			zap.Int("stored_songs", len(persisted)),
			zap.Int("conversation_songs", len(songs)),
		)
	}

	return turns, songs, nil
}

// Persist stores turns for a playlist. In-memory state is never rolled back on failure.
func (c *ConversationStore) Persist(ctx context.Context, playlistID string, turns ...model.Turn) error {
	stored := make([]model.StoredTurn, 0, len(turns))
	for _, t := range turns {
		st, err := ToStored(t)
		if err != nil {
			return err
		}
		stored = append(stored, st)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.store.InsertTurns(ctx, playlistID, stored); err != nil {
		metrics.RecordPersistenceFailure("insert_turns")
		return persistenceError("insert turns", err)
	}
	return nil
}

// PersistSongs stores songs for a playlist. An empty list is not written.
func (c *ConversationStore) PersistSongs(ctx context.Context, playlistID string, songs model.SongList) error {
	if len(songs) == 0 {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.store.InsertSongs(ctx, playlistID, songs); err != nil {
		metrics.RecordPersistenceFailure("insert_songs")
		return persistenceError("insert songs", err)
	}
	return nil
}

// ToStored converts a turn to its persisted form.
func ToStored(t model.Turn) (model.StoredTurn, error) {
	content := t.Text
	if t.IsPlaylist {
		encoded, err := songlist.Encode(t.Songs)
		if err != nil {
			return model.StoredTurn{}, err
		}
		content = encoded
	}

	return model.StoredTurn{
		Content:    content,
		Sender:     t.Sender,
		IsPlaylist: t.IsPlaylist,
		CreatedAt:  t.CreatedAt,
	}, nil
}

// FromStored converts a persisted turn back into a turn.
func FromStored(st model.StoredTurn) (model.Turn, error) {
	if st.Sender != model.SenderUser && st.Sender != model.SenderBot {
		return model.Turn{}, fmt.Errorf("unknown sender %q", st.Sender)
	}

	t := model.Turn{
		Sender:     st.Sender,
		IsPlaylist: st.IsPlaylist,
		CreatedAt:  st.CreatedAt,
	}
	if !st.IsPlaylist {
		t.Text = st.Content
		return t, nil
	}

	songs, err := songlist.Decode(st.Content)
	if err != nil {
		return model.Turn{}, err
	}
	t.Songs = songs
	return t, nil
}

func (c *ConversationStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
