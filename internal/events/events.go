// Package events publishes playlist lifecycle events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
)

// DefaultChannel is the Redis channel events are published on.
const DefaultChannel = "playlist-events"

// Publisher delivers playlist events. Publishing is best-effort for callers.
type Publisher interface {
	Publish(ctx context.Context, event *model.PlaylistEvent) error
}

// Nop discards events.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(ctx context.Context, event *model.PlaylistEvent) error {
	return nil
}

// RedisClient is the part of a Redis client used to publish events.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     RedisClient
	channel string
}

// NewRedisPublisher creates a publisher on channel. An empty channel uses DefaultChannel.
func NewRedisPublisher(rdb RedisClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// NewRedisClient connects to the server described by a redis:// URL.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// Publish marshals event and publishes it.
func (p *RedisPublisher) Publish(ctx context.Context, event *model.PlaylistEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
