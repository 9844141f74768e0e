package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/playlist-assistant/internal/llm"
	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/parser"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

func TestSubmitUserTurnFreshSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})

	res, err := h.orch.SubmitUserTurn(ctx, "upbeat workout songs")
	require.NoError(t, err)

	assert.Equal(t, OutcomePlaylist, res.Outcome)
	require.NotNil(t, res.Playlist)
	assert.NotEmpty(t, res.Playlist.ID)
	assert.Equal(t, "upbeat workout songs", res.Playlist.Title)
	assert.True(t, res.BotTurn.IsPlaylist)
	assert.Equal(t, model.SenderBot, res.BotTurn.Sender)

	want := model.SongList{{Title: "Levitating", Artist: "Dua Lipa"}}
	assert.Equal(t, want, res.Songs)

	snap := h.orch.Snapshot()
	assert.Equal(t, want, snap.Songs)
	require.Len(t, snap.Turns, 3)
	assert.Equal(t, model.GreetingText, snap.Turns[0].Text)
	assert.Equal(t, "upbeat workout songs", snap.Turns[1].Text)
	assert.True(t, snap.Turns[2].IsPlaylist)
	assert.Equal(t, StateIdle, h.orch.State())

	stored, err := h.store.Memory.ListTurns(ctx, res.Playlist.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, model.SenderUser, stored[0].Sender)
	assert.Equal(t, `[{"title":"Levitating","artist":"Dua Lipa"}]`, stored[1].Content)

	songs, err := h.store.Memory.ListSongs(ctx, res.Playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, want, songs)

	assert.Equal(t, []string{"upbeat workout songs"}, h.generator.prompts)
	assert.Contains(t, h.publisher.types(), model.EventTypePlaylistCreated)
	assert.Contains(t, h.publisher.types(), model.EventTypeTurnCompleted)
}

func TestSubmitUserTurnNetworkError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})

	p, err := h.store.CreatePlaylist(ctx, "owner-1", "Road trip")
	require.NoError(t, err)
	_, err = h.orch.SelectPlaylist(ctx, p.ID)
	require.NoError(t, err)

	h.generator.err = errors.New("network unreachable")

	res, err := h.orch.SubmitUserTurn(ctx, "more like this")
	require.NoError(t, err)

	assert.Equal(t, OutcomeGenerationFailed, res.Outcome)
	assert.Equal(t, llm.FailureNetwork.Message(), res.BotTurn.Text)
	assert.False(t, res.BotTurn.IsPlaylist)
	assert.Equal(t, p.ID, res.Playlist.ID)
	assert.Equal(t, "Road trip", res.Playlist.Title)
	assert.Zero(t, h.store.count("update_playlist_title"))
	assert.Zero(t, h.store.count("insert_songs"))

	stored, err := h.store.Memory.ListTurns(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Contains(t, h.publisher.types(), model.EventTypeGenerationFailed)
}

func TestSubmitUserTurnGenerationFailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "api key", err: errors.New("invalid API key"), want: "Check your API key."},
		{name: "timeout", err: context.DeadlineExceeded, want: "Network error."},
		{name: "other", err: errors.New("quota exceeded"), want: "Sorry, I encountered an error."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, parser.Options{})
			h.generator.err = tt.err

			res, err := h.orch.SubmitUserTurn(context.Background(), "anything")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.BotTurn.Text)
		})
	}
}

func TestSubmitUserTurnInsertSongsFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})
	h.store.failOn("insert_songs", errors.New("disk full"))

	res, err := h.orch.SubmitUserTurn(ctx, "upbeat workout songs")
	require.NoError(t, err)

	want := model.SongList{{Title: "Levitating", Artist: "Dua Lipa"}}
	assert.Equal(t, want, h.orch.Snapshot().Songs)

	stored, err := h.store.Memory.ListTurns(ctx, res.Playlist.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	songs, err := h.store.Memory.ListSongs(ctx, res.Playlist.ID)
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestSubmitUserTurnInsertTurnsFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})
	h.store.failOn("insert_turns", errors.New("disk full"))

	res, err := h.orch.SubmitUserTurn(ctx, "upbeat workout songs")
	require.NoError(t, err)

	songs, err := h.store.Memory.ListSongs(ctx, res.Playlist.ID)
	require.NoError(t, err)
	assert.Len(t, songs, 1)
	assert.Len(t, h.orch.Snapshot().Turns, 3)
}

func TestSubmitUserTurnCreateFails(t *testing.T) {
	h := newHarness(t, parser.Options{})
	h.store.failOn("create_playlist", errors.New("connection refused"))

	res, err := h.orch.SubmitUserTurn(context.Background(), "upbeat workout songs")
	require.NoError(t, err)

	assert.Equal(t, OutcomePersistenceUnavailable, res.Outcome)
	assert.Equal(t, ApologyText, res.BotTurn.Text)
	assert.Nil(t, res.Playlist)
	assert.Zero(t, h.generator.calls())

	snap := h.orch.Snapshot()
	assert.Nil(t, snap.Playlist)
	require.Len(t, snap.Turns, 3)
	assert.Equal(t, "upbeat workout songs", snap.Turns[1].Text)
	assert.Equal(t, ApologyText, snap.Turns[2].Text)
	assert.Equal(t, StateIdle, h.orch.State())
}

func TestSubmitUserTurnReusesPlaylist(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})

	first, err := h.orch.SubmitUserTurn(ctx, "upbeat workout songs")
	require.NoError(t, err)
	second, err := h.orch.SubmitUserTurn(ctx, "now something slower")
	require.NoError(t, err)

	assert.Equal(t, first.Playlist.ID, second.Playlist.ID)
	assert.Equal(t, "upbeat workout songs", second.Playlist.Title)
	assert.Equal(t, 1, h.store.count("create_playlist"))
	assert.Len(t, h.orch.Snapshot().Songs, 2)

	stored, err := h.store.Memory.ListTurns(ctx, first.Playlist.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestSubmitUserTurnParseFallbacks(t *testing.T) {
	t.Run("Prose", func(t *testing.T) {
		h := newHarness(t, parser.Options{})
		h.generator.response = "Here are some great songs!"

		res, err := h.orch.SubmitUserTurn(context.Background(), "anything")
		require.NoError(t, err)
		assert.Equal(t, OutcomeText, res.Outcome)
		assert.Equal(t, parser.ParseFailureText, res.BotTurn.Text)
		assert.Zero(t, h.store.count("insert_songs"))
	})

	t.Run("EmptyArrayAsText", func(t *testing.T) {
		h := newHarness(t, parser.Options{})
		h.generator.response = "[]"

		res, err := h.orch.SubmitUserTurn(context.Background(), "anything")
		require.NoError(t, err)
		assert.Equal(t, OutcomeText, res.Outcome)
		assert.Equal(t, parser.EmptyPlaylistText, res.BotTurn.Text)
	})

	t.Run("EmptyArrayAsPlaylist", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t, parser.Options{AllowEmpty: true})
		h.generator.response = "```json\n[]\n```"

		res, err := h.orch.SubmitUserTurn(ctx, "anything")
		require.NoError(t, err)
		assert.Equal(t, OutcomePlaylist, res.Outcome)
		assert.True(t, res.BotTurn.IsPlaylist)
		assert.Empty(t, res.BotTurn.Songs)
		assert.Zero(t, h.store.count("insert_songs"))

		stored, err := h.store.Memory.ListTurns(ctx, res.Playlist.ID)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, "[]", stored[1].Content)
	})
}

func TestSubmitUserTurnValidation(t *testing.T) {
	h := newHarness(t, parser.Options{})

	_, err := h.orch.SubmitUserTurn(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, h.orch.Snapshot().Turns, 1)
}

func TestNewPlaylistThenTurnRetitles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})

	sess, err := h.orch.NewPlaylist(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess.Playlist)
	assert.Equal(t, model.DefaultPlaylistTitle, sess.Playlist.Title)
	require.Len(t, sess.Turns, 1)

	res, err := h.orch.SubmitUserTurn(ctx, "late night jazz")
	require.NoError(t, err)
	assert.Equal(t, sess.Playlist.ID, res.Playlist.ID)
	assert.Equal(t, "late night jazz", res.Playlist.Title)
	assert.Equal(t, "late night jazz", h.orch.Snapshot().Playlist.Title)
	assert.Equal(t, 1, h.store.count("create_playlist"))

	list, err := h.store.Memory.ListPlaylists(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "late night jazz", list[0].Title)
	assert.Contains(t, h.publisher.types(), model.EventTypePlaylistRenamed)
}

func TestRetitleFailureKeepsTurn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})

	_, err := h.orch.NewPlaylist(ctx)
	require.NoError(t, err)
	h.store.failOn("update_playlist_title", errors.New("down"))

	res, err := h.orch.SubmitUserTurn(ctx, "late night jazz")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPlaylistTitle, res.Playlist.Title)
	assert.Equal(t, OutcomePlaylist, res.Outcome)
}

func TestTitleWritesApplyInIssueOrder(t *testing.T) {
	t.Run("RenameDuringGeneration", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t, parser.Options{})

		sess, err := h.orch.NewPlaylist(ctx)
		require.NoError(t, err)

		h.generator.started = make(chan struct{}, 1)
		h.generator.release = make(chan struct{})

		done := make(chan *TurnResult, 1)
		go func() {
			res, err := h.orch.SubmitUserTurn(ctx, "chill rainy day")
			assert.NoError(t, err)
			done <- res
		}()

		select {
		case <-h.generator.started:
		case <-time.After(2 * time.Second):
			t.Fatal("generator was not called")
		}

		renamed, err := h.orch.RenameSelected(ctx, "My Mix")
		require.NoError(t, err)
		assert.Equal(t, "My Mix", renamed.Title)

		close(h.generator.release)

		var res *TurnResult
		select {
		case res = <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("turn did not finish")
		}
		require.NotNil(t, res)
		assert.Equal(t, OutcomePlaylist, res.Outcome)
		assert.Equal(t, "My Mix", res.Playlist.Title)
		assert.Equal(t, "My Mix", h.orch.Snapshot().Playlist.Title)

		list, err := h.store.Memory.ListPlaylists(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, sess.Playlist.ID, list[0].ID)
		assert.Equal(t, "My Mix", list[0].Title)
		assert.Equal(t, 1, h.store.count("update_playlist_title"))
	})

	t.Run("RenameAfterTurn", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t, parser.Options{})

		_, err := h.orch.NewPlaylist(ctx)
		require.NoError(t, err)

		res, err := h.orch.SubmitUserTurn(ctx, "chill rainy day")
		require.NoError(t, err)
		assert.Equal(t, "chill rainy day", res.Playlist.Title)

		_, err = h.orch.RenameSelected(ctx, "My Mix")
		require.NoError(t, err)

		_, err = h.orch.SubmitUserTurn(ctx, "more like this")
		require.NoError(t, err)

		list, err := h.store.Memory.ListPlaylists(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, "My Mix", list[0].Title)
		assert.Equal(t, "My Mix", h.orch.Snapshot().Playlist.Title)
	})
}

func TestSelectPlaylistKeepsReadsResponsive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})

	first, err := h.orch.SubmitUserTurn(ctx, "upbeat workout songs")
	require.NoError(t, err)
	second, err := h.orch.NewPlaylist(ctx)
	require.NoError(t, err)

	g := h.store.holdOn("list_turns")

	done := make(chan *model.Session, 1)
	go func() {
		sess, err := h.orch.SelectPlaylist(ctx, first.Playlist.ID)
		assert.NoError(t, err)
		done <- sess
	}()

	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("rehydration did not start")
	}

	read := make(chan *model.Session, 1)
	go func() { read <- h.orch.Snapshot() }()

	select {
	case snap := <-read:
		require.NotNil(t, snap.Playlist)
		assert.Equal(t, second.Playlist.ID, snap.Playlist.ID)
	case <-time.After(time.Second):
		t.Fatal("snapshot blocked while rehydrating")
	}
	assert.Equal(t, StateIdle, h.orch.State())

	close(g.release)

	select {
	case sess := <-done:
		require.NotNil(t, sess)
		assert.Equal(t, first.Playlist.ID, sess.Playlist.ID)
		assert.Len(t, sess.Turns, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("selection did not finish")
	}
}

func TestSelectPlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("RehydratesAndDeselects", func(t *testing.T) {
		h := newHarness(t, parser.Options{})

		res, err := h.orch.SubmitUserTurn(ctx, "upbeat workout songs")
		require.NoError(t, err)

		sess, err := h.orch.SelectPlaylist(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, sess.Playlist)
		require.Len(t, sess.Turns, 1)
		assert.Equal(t, model.GreetingText, sess.Turns[0].Text)
		assert.Empty(t, sess.Songs)

		sess, err = h.orch.SelectPlaylist(ctx, res.Playlist.ID)
		require.NoError(t, err)
		require.NotNil(t, sess.Playlist)
		assert.Equal(t, res.Playlist.ID, sess.Playlist.ID)
		require.Len(t, sess.Turns, 2)
		assert.Equal(t, "upbeat workout songs", sess.Turns[0].Text)
		assert.Equal(t, model.SongList{{Title: "Levitating", Artist: "Dua Lipa"}}, sess.Songs)
	})

	t.Run("EmptyPlaylistShowsGreeting", func(t *testing.T) {
		h := newHarness(t, parser.Options{})
		p, err := h.store.CreatePlaylist(ctx, "owner-1", "fresh")
		require.NoError(t, err)

		sess, err := h.orch.SelectPlaylist(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, sess.Turns, 1)
		assert.Equal(t, model.GreetingText, sess.Turns[0].Text)
	})

	t.Run("OtherOwnersPlaylist", func(t *testing.T) {
		h := newHarness(t, parser.Options{})
		p, err := h.store.CreatePlaylist(ctx, "owner-2", "theirs")
		require.NoError(t, err)

		_, err = h.orch.SelectPlaylist(ctx, p.ID)
		assert.ErrorIs(t, err, ErrPlaylistNotFound)
	})

	t.Run("RehydrateFailureShowsGreeting", func(t *testing.T) {
		h := newHarness(t, parser.Options{})
		p, err := h.store.CreatePlaylist(ctx, "owner-1", "x")
		require.NoError(t, err)
		h.store.failOn("list_turns", errors.New("down"))

		sess, err := h.orch.SelectPlaylist(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, sess.Playlist.ID)
		require.Len(t, sess.Turns, 1)
		assert.Equal(t, model.GreetingText, sess.Turns[0].Text)
	})

	t.Run("ListFailure", func(t *testing.T) {
		h := newHarness(t, parser.Options{})
		h.store.failOn("list_playlists", errors.New("down"))

		_, err := h.orch.SelectPlaylist(ctx, "pid")
		assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	})
}

func TestTurnInFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})
	h.generator.block = true
	h.generator.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.SubmitUserTurn(ctx, "first")
		done <- err
	}()

	select {
	case <-h.generator.started:
	case <-time.After(2 * time.Second):
		t.Fatal("generator was not called")
	}

	assert.Equal(t, StateAwaitingGeneration, h.orch.State())

	_, err := h.orch.SubmitUserTurn(ctx, "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	sess, err := h.orch.SelectPlaylist(ctx, "")
	require.NoError(t, err)
	assert.Len(t, sess.Turns, 1)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTurnDiscarded)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight turn did not finish")
	}

	snap := h.orch.Snapshot()
	require.Len(t, snap.Turns, 1)
	assert.Equal(t, model.GreetingText, snap.Turns[0].Text)
	assert.Equal(t, StateIdle, h.orch.State())
	assert.Zero(t, h.store.count("insert_turns"))
	assert.Contains(t, h.publisher.types(), model.EventTypeTurnDiscarded)

	h.generator.mu.Lock()
	h.generator.block = false
	h.generator.started = nil
	h.generator.mu.Unlock()

	_, err = h.orch.SubmitUserTurn(ctx, "after")
	assert.NoError(t, err)
}

func TestRenameSelected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})

	_, err := h.orch.RenameSelected(ctx, "x")
	assert.ErrorIs(t, err, ErrNoPlaylistSelected)

	res, err := h.orch.SubmitUserTurn(ctx, "upbeat workout songs")
	require.NoError(t, err)

	p, err := h.orch.RenameSelected(ctx, "Gym")
	require.NoError(t, err)
	assert.Equal(t, res.Playlist.ID, p.ID)
	assert.Equal(t, "Gym", p.Title)
	assert.Equal(t, "Gym", h.orch.Snapshot().Playlist.Title)

	p, err = h.orch.RenameSelected(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.UntitledPlaylistTitle, p.Title)
}

func TestListPlaylistsNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, parser.Options{})

	_, err := h.orch.NewPlaylist(ctx)
	require.NoError(t, err)
	second, err := h.orch.NewPlaylist(ctx)
	require.NoError(t, err)

	list, err := h.orch.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Playlist.ID, list[0].ID)
}

func TestSessionManager(t *testing.T) {
	m := NewSessionManager(Deps{
		Store:     newFakeStore(),
		Generator: &fakeGenerator{response: levitatingResponse},
		Logger:    logger.NewNop(),
	})

	a := m.Get("owner-1")
	assert.Same(t, a, m.Get("owner-1"))
	assert.NotSame(t, a, m.Get("owner-2"))
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "owner-1", a.OwnerID())

	m.Remove("owner-1")
	assert.Equal(t, 1, m.Len())
	assert.NotSame(t, a, m.Get("owner-1"))
	m.Remove("unknown")
}
