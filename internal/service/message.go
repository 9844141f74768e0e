package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/internal/llm"
	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/parser"
	"github.com/capitalize-ai/playlist-assistant/pkg/metrics"
	"github.com/capitalize-ai/playlist-assistant/pkg/tracing"
)

// ApologyText is shown when no playlist could be created for a turn.
const ApologyText = "Sorry, something went wrong. Please try again."

// Outcome describes how a turn ended.
type Outcome string

const (
	OutcomePlaylist               Outcome = "playlist"
	OutcomeText                   Outcome = "text"
	OutcomeGenerationFailed       Outcome = "generation_failed"
	OutcomePersistenceUnavailable Outcome = "persistence_unavailable"
)

// TurnResult is the outcome of SubmitUserTurn.
type TurnResult struct {
	UserTurn model.Turn
	BotTurn  model.Turn
	Outcome  Outcome
	Playlist *model.Playlist
	Songs    model.SongList
}

// Response converts the result to its API form.
func (r *TurnResult) Response() *model.TurnResponse {
	return &model.TurnResponse{
		UserTurn: r.UserTurn,
		BotTurn:  r.BotTurn,
		Outcome:  string(r.Outcome),
		Playlist: r.Playlist,
		Songs:    r.Songs,
	}
}

// SubmitUserTurn runs one user turn through playlist selection, generation,
// parsing and persistence. The user turn is appended before any I/O and stays
// visible whatever happens downstream.
func (o *Orchestrator) SubmitUserTurn(ctx context.Context, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := tracing.Tracer().Start(ctx, "orchestrator.SubmitUserTurn")
	defer span.End()

	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		metrics.TurnsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrTurnInFlight
	}

	userTurn := model.NewUserTurn(text)
	o.conversations.Append(o.session, userTurn)
	o.state = StateDispatching
	epoch := o.epoch
	current := o.session.Playlist
	if current != nil {
		c := *current
		current = &c
	}
	turnCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	// Dispatching: a destination playlist must exist before generating.
	o.writeMu.Lock()
	playlist, err := o.playlists.EnsureSelected(turnCtx, o.ownerID, current, text)
	o.writeMu.Unlock()
	if err != nil {
		return o.recoverFromSelection(epoch, userTurn, err)
	}
	created := current == nil || current.ID != playlist.ID

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return nil, o.discard(ctx, playlist.ID)
	}
	o.session.Playlist = playlist
	o.state = StateAwaitingGeneration
	o.mu.Unlock()

	if created {
		o.publish(ctx, model.NewPlaylistEvent(model.EventTypePlaylistCreated, o.ownerID, playlist.ID))
	}
	span.SetAttributes(attribute.String("playlist.id", playlist.ID))

	// AwaitingGeneration.
	botTurn, outcome := o.generate(turnCtx, text)

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return nil, o.discard(ctx, playlist.ID)
	}
	o.conversations.Append(o.session, botTurn)
	o.state = StateReconciling
	o.mu.Unlock()

	// Reconciling: independent best-effort writes.
	o.reconcile(context.WithoutCancel(ctx), playlist, userTurn, botTurn, text)

	o.mu.Lock()
	if o.epoch == epoch {
		o.state = StateIdle
		o.cancel = nil
		if o.session.Playlist != nil {
			playlist = o.session.Playlist
		}
	}
	songs := o.session.Songs.Clone()
	o.mu.Unlock()

	eventType := model.EventTypeTurnCompleted
	if outcome == OutcomeGenerationFailed {
		eventType = model.EventTypeGenerationFailed
	}
	event := model.NewPlaylistEvent(eventType, o.ownerID, playlist.ID)
	event.SongCount = len(botTurn.Songs)
	event.Reason = string(outcome)
	o.publish(ctx, event)

	metrics.TurnsTotal.WithLabelValues(string(outcome)).Inc()
	span.SetAttributes(attribute.String("turn.outcome", string(outcome)))

	p := *playlist
	return &TurnResult{
		UserTurn: userTurn,
		BotTurn:  botTurn,
		Outcome:  outcome,
		Playlist: &p,
		Songs:    songs,
	}, nil
}

// generate calls the Generation Service and classifies the result into a bot turn.
func (o *Orchestrator) generate(ctx context.Context, text string) (model.Turn, Outcome) {
	raw, err := o.generator.Generate(ctx, text)
	if err != nil {
		failure := llm.Classify(err)
		o.logger.Warn("generation unavailable",
			zap.String("failure", string(failure)),
			zap.Error(err),
		)
		return model.NewBotTextTurn(failure.Message()), OutcomeGenerationFailed
	}

	result := o.parser.Parse(raw)
	metrics.ParseResultsTotal.WithLabelValues(string(result.Kind)).Inc()

	if result.Kind == parser.KindPlaylist {
		return model.NewBotPlaylistTurn(result.Songs), OutcomePlaylist
	}
	return model.NewBotTextTurn(result.Text), OutcomeText
}

// reconcile persists songs, then both turns, then the title. Each write is
// attempted regardless of the others failing.
func (o *Orchestrator) reconcile(ctx context.Context, playlist *model.Playlist, userTurn, botTurn model.Turn, text string) {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	log := o.logger.With(zap.String("playlist_id", playlist.ID))

	if botTurn.IsPlaylist {
		if err := o.conversations.PersistSongs(ctx, playlist.ID, botTurn.Songs); err != nil {
			log.Error("failed to persist songs", zap.Error(err))
		}
	}

	if err := o.conversations.Persist(ctx, playlist.ID, userTurn, botTurn); err != nil {
		log.Error("failed to persist turns", zap.Error(err))
	}

	// The title may have changed since dispatch.
	latest, err := o.latestPlaylist(ctx, playlist)
	if err != nil {
		log.Error("failed to read playlist before retitle", zap.Error(err))
		return
	}

	retitled, err := o.playlists.MaybeRetitle(ctx, latest, text)
	if err != nil {
		log.Error("failed to retitle playlist", zap.Error(err))
		return
	}
	if retitled != latest {
		o.applyPlaylist(retitled)
		o.publish(ctx, model.NewPlaylistEvent(model.EventTypePlaylistRenamed, o.ownerID, playlist.ID))
	}
}

// latestPlaylist returns the current state of p: the selected copy when p is
// still selected, otherwise the stored one. o.writeMu must be held.
func (o *Orchestrator) latestPlaylist(ctx context.Context, p *model.Playlist) (*model.Playlist, error) {
	o.mu.Lock()
	if o.session.Playlist != nil && o.session.Playlist.ID == p.ID {
		c := *o.session.Playlist
		o.mu.Unlock()
		return &c, nil
	}
	o.mu.Unlock()

	return o.findPlaylist(ctx, p.ID)
}

// recoverFromSelection appends the apology turn after playlist creation failed.
func (o *Orchestrator) recoverFromSelection(epoch uint64, userTurn model.Turn, cause error) (*TurnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch {
		return nil, ErrTurnDiscarded
	}

	o.logger.Error("no playlist for turn", zap.Error(cause))

	o.state = StateErrorRecovered
	apology := model.NewBotTextTurn(ApologyText)
	o.conversations.Append(o.session, apology)
	o.state = StateIdle
	o.cancel = nil

	metrics.TurnsTotal.WithLabelValues(string(OutcomePersistenceUnavailable)).Inc()

	return &TurnResult{
		UserTurn: userTurn,
		BotTurn:  apology,
		Outcome:  OutcomePersistenceUnavailable,
		Songs:    o.session.Songs.Clone(),
	}, nil
}

// discard drops the results of a turn overtaken by a selection change.
func (o *Orchestrator) discard(ctx context.Context, playlistID string) error {
	o.logger.Info("discarding in-flight turn", zap.String("playlist_id", playlistID))
	metrics.TurnsTotal.WithLabelValues("discarded").Inc()

	event := model.NewPlaylistEvent(model.EventTypeTurnDiscarded, o.ownerID, playlistID)
	event.Reason = "selection changed"
	o.publish(ctx, event)

	return ErrTurnDiscarded
}
