package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
)

var (
	_ RedisClient = (*redis.Client)(nil)
	_ RedisClient = (*fakeRedis)(nil)
)

type fakeRedis struct {
	channel string
	message interface{}
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message = message
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(1)
	return cmd
}

func TestRedisPublisher(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		rdb := &fakeRedis{}
		pub := NewRedisPublisher(rdb, "")

		event := model.NewPlaylistEvent(model.EventTypeTurnCompleted, "owner-1", "pid")
		event.SongCount = 3
		require.NoError(t, pub.Publish(context.Background(), event))

		assert.Equal(t, DefaultChannel, rdb.channel)

		var decoded model.PlaylistEvent
		require.NoError(t, json.Unmarshal([]byte(rdb.message.(string)), &decoded))
		assert.Equal(t, event.ID, decoded.ID)
		assert.Equal(t, model.EventTypeTurnCompleted, decoded.Type)
		assert.Equal(t, 3, decoded.SongCount)
	})

	t.Run("Failure", func(t *testing.T) {
		pub := NewRedisPublisher(&fakeRedis{err: errors.New("connection refused")}, "custom")
		err := pub.Publish(context.Background(), model.NewPlaylistEvent(model.EventTypePlaylistCreated, "o", "p"))
		assert.Error(t, err)
	})
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), nil))
}
