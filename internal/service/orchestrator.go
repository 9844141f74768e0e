package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/internal/events"
	"github.com/capitalize-ai/playlist-assistant/internal/llm"
	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/parser"
	"github.com/capitalize-ai/playlist-assistant/internal/store"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
	"github.com/capitalize-ai/playlist-assistant/pkg/tracing"
)

// State is the orchestrator's position in the per-turn state machine.
type State string

const (
	StateIdle               State = "idle"
	StateDispatching        State = "dispatching"
	StateAwaitingGeneration State = "awaiting_generation"
	StateReconciling        State = "reconciling"
	StateErrorRecovered     State = "error_recovered"
)

// Deps are the collaborators shared by every orchestrator.
type Deps struct {
	Store              store.Store
	Generator          llm.Generator
	Parser             *parser.Parser
	Publisher          events.Publisher
	Logger             *logger.Logger
	PersistenceTimeout time.Duration
}

// Orchestrator drives one owner's conversation. It processes at most one turn
// at a time and owns the session exclusively.
type Orchestrator struct {
	ownerID       string
	store         store.Store
	playlists     *PlaylistManager
	conversations *ConversationStore
	generator     llm.Generator
	parser        *parser.Parser
	publisher     events.Publisher
	logger        *logger.Logger
	timeout       time.Duration

	mu      sync.Mutex
	session *model.Session
	state   State
	epoch   uint64
	cancel  context.CancelFunc

	// writeMu orders Persistence Service writes issued by this orchestrator.
	writeMu sync.Mutex
}

// NewOrchestrator creates an orchestrator with an unselected session.
func NewOrchestrator(ownerID string, deps Deps) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithSession(ownerID)

	pub := deps.Publisher
	if pub == nil {
		pub = events.Nop{}
	}

	p := deps.Parser
	if p == nil {
		p = parser.New(parser.Options{})
	}

	return &Orchestrator{
		ownerID:       ownerID,
		store:         deps.Store,
		playlists:     NewPlaylistManager(deps.Store, log, deps.PersistenceTimeout),
		conversations: NewConversationStore(deps.Store, log, deps.PersistenceTimeout),
		generator:     deps.Generator,
		parser:        p,
		publisher:     pub,
		logger:        log,
		timeout:       deps.PersistenceTimeout,
		session:       model.NewSession(ownerID),
		state:         StateIdle,
	}
}

// OwnerID returns the owner of the session.
func (o *Orchestrator) OwnerID() string {
	return o.ownerID
}

// Snapshot returns a copy of the current session.
func (o *Orchestrator) Snapshot() *model.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ListPlaylists returns the owner's playlists, newest first.
func (o *Orchestrator) ListPlaylists(ctx context.Context) ([]model.Playlist, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	playlists, err := o.store.ListPlaylists(ctx, o.ownerID)
	if err != nil {
		return nil, persistenceError("list playlists", err)
	}
	return playlists, nil
}

// SelectPlaylist replaces the session with the persisted state of playlistID.
// An empty id deselects. Any in-flight turn is cancelled and its results discarded.
func (o *Orchestrator) SelectPlaylist(ctx context.Context, playlistID string) (*model.Session, error) {
	ctx, span := tracing.Tracer().Start(ctx, "orchestrator.SelectPlaylist")
	defer span.End()
	span.SetAttributes(attribute.String("playlist.id", playlistID))

	if playlistID == "" {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.invalidateLocked()
		o.session.Reset()
		return o.session.Clone(), nil
	}

	target, err := o.findPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.invalidateLocked()
	epoch := o.epoch
	o.mu.Unlock()

	turns, songs, err := o.conversations.Rehydrate(ctx, playlistID)
	if err != nil {
		o.logger.Error("rehydration failed, showing greeting",
			zap.String("playlist_id", playlistID),
			zap.Error(err),
		)
		turns = []model.Turn{model.GreetingTurn()}
		songs = model.SongList{}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// A later selection owns the session.
	if o.epoch != epoch {
		return o.session.Clone(), nil
	}
	// Turns started while rehydrating belong to the old session.
	o.invalidateLocked()

	o.session = &model.Session{
		OwnerID:  o.ownerID,
		Playlist: target,
		Turns:    turns,
		Songs:    songs,
	}

	o.logger.Info("playlist selected",
		zap.String("playlist_id", playlistID),
		zap.Int("turns", len(turns)),
		zap.Int("songs", len(songs)),
	)

	return o.session.Clone(), nil
}

// NewPlaylist creates an empty playlist with the default title and selects it.
// The next user turn retitles it.
func (o *Orchestrator) NewPlaylist(ctx context.Context) (*model.Session, error) {
	o.writeMu.Lock()
	p, err := o.playlists.Create(ctx, o.ownerID, model.DefaultPlaylistTitle)
	o.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	o.publish(ctx, model.NewPlaylistEvent(model.EventTypePlaylistCreated, o.ownerID, p.ID))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.invalidateLocked()
	o.session.Reset()
	o.session.Playlist = p

	return o.session.Clone(), nil
}

// RenameSelected renames the selected playlist.
func (o *Orchestrator) RenameSelected(ctx context.Context, title string) (*model.Playlist, error) {
	o.writeMu.Lock()

	o.mu.Lock()
	current := o.session.Playlist
	if current != nil {
		c := *current
		current = &c
	}
	o.mu.Unlock()

	if current == nil || current.IsDraft() {
		o.writeMu.Unlock()
		return nil, ErrNoPlaylistSelected
	}

	renamed, err := o.playlists.Rename(ctx, current, title)
	if err != nil {
		o.writeMu.Unlock()
		return nil, err
	}
	o.applyPlaylist(renamed)
	o.writeMu.Unlock()

	if renamed.Title != current.Title {
		o.publish(ctx, model.NewPlaylistEvent(model.EventTypePlaylistRenamed, o.ownerID, renamed.ID))
	}

	return renamed, nil
}

// findPlaylist returns the owner's playlist with id or ErrPlaylistNotFound.
func (o *Orchestrator) findPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	playlists, err := o.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		if playlists[i].ID == id {
			p := playlists[i]
			return &p, nil
		}
	}
	return nil, ErrPlaylistNotFound
}

// invalidateLocked cancels any in-flight turn and returns to Idle. o.mu must be held.
func (o *Orchestrator) invalidateLocked() {
	o.epoch++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = StateIdle
}

// applyPlaylist updates the selected playlist if it is still p.
func (o *Orchestrator) applyPlaylist(p *model.Playlist) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.Playlist != nil && o.session.Playlist.ID == p.ID {
		updated := *p
		o.session.Playlist = &updated
	}
}

func (o *Orchestrator) publish(ctx context.Context, event *model.PlaylistEvent) {
	ctx, cancel := o.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to publish event",
			zap.String("event_type", string(event.Type)),
			zap.String("playlist_id", event.PlaylistID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
