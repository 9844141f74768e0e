package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
)

const (
	// StreamName is the name of the playlist events stream.
	StreamName = "PLAYLISTS"

	// SubjectPrefix is the prefix for all playlist subjects.
	SubjectPrefix = "playlist"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the playlist events stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Playlist lifecycle and conversation turn events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// subjectToken makes an id safe to use as a single subject token.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, id)
}

// EventSubject returns the subject for an event.
func EventSubject(ownerID, playlistID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, subjectToken(ownerID), subjectToken(playlistID), eventType)
}

// PlaylistFilter returns the filter subject for all events of a playlist.
func PlaylistFilter(ownerID, playlistID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, subjectToken(ownerID), subjectToken(playlistID))
}

// Publish publishes an event to JetStream.
func (m *StreamManager) Publish(ctx context.Context, event *model.PlaylistEvent) error {
	_, err := m.PublishEvent(ctx, event)
	return err
}

// PublishEvent publishes an event and returns its stream sequence.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.PlaylistEvent) (uint64, error) {
	subject := EventSubject(event.OwnerID, event.PlaylistID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// History returns up to limit events recorded for a playlist, oldest first.
func (m *StreamManager) History(ctx context.Context, ownerID, playlistID string, limit int) ([]model.PlaylistEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	consumer, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{PlaylistFilter(ownerID, playlistID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	events := make([]model.PlaylistEvent, 0, limit)
	for msg := range batch.Messages() {
		var event model.PlaylistEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		events = append(events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("batch error: %w", err)
	}

	return events, nil
}
