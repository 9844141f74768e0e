package service

import (
	"context"
	"sync"
	"testing"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/parser"
	"github.com/capitalize-ai/playlist-assistant/internal/store"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

// fakeStore wraps the memory store with per-operation failure injection.
type fakeStore struct {
	*store.Memory

	mu    sync.Mutex
	errs  map[string]error
	calls map[string]int
	gates map[string]*gate
}

// gate holds an operation until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		Memory: store.NewMemory(),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
		gates:  make(map[string]*gate),
	}
}

func (f *fakeStore) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

// holdOn makes the next calls to op wait until the returned gate is released.
func (f *fakeStore) holdOn(op string) *gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f.gates[op] = g
	return g
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) hit(op string) error {
	f.mu.Lock()
	f.calls[op]++
	err, g := f.errs[op], f.gates[op]
	f.mu.Unlock()

	if g != nil {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return err
}

func (f *fakeStore) CreatePlaylist(ctx context.Context, ownerID, title string) (*model.Playlist, error) {
	if err := f.hit("create_playlist"); err != nil {
		return nil, err
	}
	return f.Memory.CreatePlaylist(ctx, ownerID, title)
}

func (f *fakeStore) UpdatePlaylistTitle(ctx context.Context, playlistID, title string) error {
	if err := f.hit("update_playlist_title"); err != nil {
		return err
	}
	return f.Memory.UpdatePlaylistTitle(ctx, playlistID, title)
}

func (f *fakeStore) ListPlaylists(ctx context.Context, ownerID string) ([]model.Playlist, error) {
	if err := f.hit("list_playlists"); err != nil {
		return nil, err
	}
	return f.Memory.ListPlaylists(ctx, ownerID)
}

func (f *fakeStore) InsertSongs(ctx context.Context, playlistID string, songs model.SongList) error {
	if err := f.hit("insert_songs"); err != nil {
		return err
	}
	return f.Memory.InsertSongs(ctx, playlistID, songs)
}

func (f *fakeStore) InsertTurns(ctx context.Context, playlistID string, turns []model.StoredTurn) error {
	if err := f.hit("insert_turns"); err != nil {
		return err
	}
	return f.Memory.InsertTurns(ctx, playlistID, turns)
}

func (f *fakeStore) ListSongs(ctx context.Context, playlistID string) (model.SongList, error) {
	if err := f.hit("list_songs"); err != nil {
		return nil, err
	}
	return f.Memory.ListSongs(ctx, playlistID)
}

func (f *fakeStore) ListTurns(ctx context.Context, playlistID string) ([]model.StoredTurn, error) {
	if err := f.hit("list_turns"); err != nil {
		return nil, err
	}
	return f.Memory.ListTurns(ctx, playlistID)
}

// fakeGenerator returns a canned response. With block set it waits for
// cancellation instead. With release set it answers once release is closed.
type fakeGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	block    bool
	release  chan struct{}
	started  chan struct{}
	prompts  []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	block, release, started := g.block, g.release, g.started
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.response, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.PlaylistEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event *model.PlaylistEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

const levitatingResponse = "```json\n[{\"title\":\"Levitating\",\"artist\":\"Dua Lipa\"}]\n```"

type testHarness struct {
	store     *fakeStore
	generator *fakeGenerator
	publisher *recordingPublisher
	orch      *Orchestrator
}

func newHarness(t *testing.T, opts parser.Options) *testHarness {
	t.Helper()

	h := &testHarness{
		store:     newFakeStore(),
		generator: &fakeGenerator{response: levitatingResponse},
		publisher: &recordingPublisher{},
	}
	h.orch = NewOrchestrator("owner-1", Deps{
		Store:     h.store,
		Generator: h.generator,
		Parser:    parser.New(opts),
		Publisher: h.publisher,
		Logger:    logger.NewNop(),
	})
	return h
}
