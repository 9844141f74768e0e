package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "upbeat workout songs", Truncate("upbeat workout songs"))
	assert.Equal(t, strings.Repeat("a", 50), Truncate(strings.Repeat("a", 80)))
	assert.Equal(t, strings.Repeat("é", 50), Truncate(strings.Repeat("é", 51)))
	assert.Equal(t, "", Truncate(""))
}

func TestEnsureSelected(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesFromFirstMessage", func(t *testing.T) {
		st := newFakeStore()
		m := NewPlaylistManager(st, logger.NewNop(), 0)

		p, err := m.EnsureSelected(ctx, "owner-1", nil, "  upbeat workout songs ")
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "upbeat workout songs", p.Title)
		assert.Equal(t, "owner-1", p.OwnerID)
	})

	t.Run("LongMessageIsTruncated", func(t *testing.T) {
		m := NewPlaylistManager(newFakeStore(), logger.NewNop(), 0)

		p, err := m.EnsureSelected(ctx, "owner-1", nil, strings.Repeat("x", 120))
		require.NoError(t, err)
		assert.Len(t, p.Title, model.MaxTitleLength)
	})

	t.Run("Idempotent", func(t *testing.T) {
		st := newFakeStore()
		m := NewPlaylistManager(st, logger.NewNop(), 0)

		first, err := m.EnsureSelected(ctx, "owner-1", nil, "first")
		require.NoError(t, err)
		second, err := m.EnsureSelected(ctx, "owner-1", first, "second")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, st.count("create_playlist"))
	})

	t.Run("PersistenceFailure", func(t *testing.T) {
		st := newFakeStore()
		st.failOn("create_playlist", errors.New("connection refused"))
		m := NewPlaylistManager(st, logger.NewNop(), 0)

		p, err := m.EnsureSelected(ctx, "owner-1", nil, "x")
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	})
}

func TestMaybeRetitle(t *testing.T) {
	ctx := context.Background()

	newDefault := func(t *testing.T, st *fakeStore) *model.Playlist {
		p, err := st.CreatePlaylist(ctx, "owner-1", model.DefaultPlaylistTitle)
		require.NoError(t, err)
		return p
	}

	t.Run("RetitlesDefault", func(t *testing.T) {
		st := newFakeStore()
		m := NewPlaylistManager(st, logger.NewNop(), 0)
		p := newDefault(t, st)

		got, err := m.MaybeRetitle(ctx, p, "chill sunday morning")
		require.NoError(t, err)
		assert.Equal(t, "chill sunday morning", got.Title)
		assert.Equal(t, model.DefaultPlaylistTitle, p.Title, "input must not be mutated")

		list, err := st.Memory.ListPlaylists(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, "chill sunday morning", list[0].Title)
	})

	t.Run("SecondCallIsNoop", func(t *testing.T) {
		st := newFakeStore()
		m := NewPlaylistManager(st, logger.NewNop(), 0)
		p := newDefault(t, st)

		first, err := m.MaybeRetitle(ctx, p, "chill")
		require.NoError(t, err)
		second, err := m.MaybeRetitle(ctx, first, "chill")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, st.count("update_playlist_title"))
	})

	t.Run("KeepsMeaningfulTitle", func(t *testing.T) {
		st := newFakeStore()
		m := NewPlaylistManager(st, logger.NewNop(), 0)
		p := &model.Playlist{ID: "pid", Title: "Road trip"}

		got, err := m.MaybeRetitle(ctx, p, "something else")
		require.NoError(t, err)
		assert.Same(t, p, got)
		assert.Zero(t, st.count("update_playlist_title"))
	})

	t.Run("FailureKeepsTitle", func(t *testing.T) {
		st := newFakeStore()
		m := NewPlaylistManager(st, logger.NewNop(), 0)
		p := newDefault(t, st)
		st.failOn("update_playlist_title", errors.New("timeout"))

		got, err := m.MaybeRetitle(ctx, p, "chill")
		assert.ErrorIs(t, err, ErrPersistenceUnavailable)
		assert.Same(t, p, got)
		assert.Equal(t, model.DefaultPlaylistTitle, got.Title)
	})
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	m := NewPlaylistManager(st, logger.NewNop(), 0)

	p, err := st.CreatePlaylist(ctx, "owner-1", "Road trip")
	require.NoError(t, err)

	got, err := m.Rename(ctx, p, "   ")
	require.NoError(t, err)
	assert.Equal(t, model.UntitledPlaylistTitle, got.Title)

	got, err = m.Rename(ctx, got, strings.Repeat("b", 60))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 50), got.Title)
}
