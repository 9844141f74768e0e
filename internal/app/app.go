// Package app wires configuration into the running collaborators shared by the
// API server and the operator CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/internal/config"
	"github.com/capitalize-ai/playlist-assistant/internal/events"
	"github.com/capitalize-ai/playlist-assistant/internal/handler"
	"github.com/capitalize-ai/playlist-assistant/internal/llm"
	natsclient "github.com/capitalize-ai/playlist-assistant/internal/nats"
	"github.com/capitalize-ai/playlist-assistant/internal/parser"
	"github.com/capitalize-ai/playlist-assistant/internal/service"
	"github.com/capitalize-ai/playlist-assistant/internal/store"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

// App holds the collaborators built from a Config.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Store    store.Store
	Deps     service.Deps
	Sessions *service.SessionManager

	// History is set when the events backend keeps a replayable log.
	History handler.EventHistory
	Checks  map[string]handler.Pinger

	closers []func()
}

// New builds the store, generator and event publisher described by cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: log,
		Checks: make(map[string]handler.Pinger),
	}

	st, err := store.Open(ctx, store.Options{
		Driver:      store.Driver(cfg.StoreDriver),
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		AutoMigrate: cfg.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.Store = st
	a.Checks["store"] = st
	a.closers = append(a.closers, st.Close)

	publisher, err := a.openEvents(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Deps = service.Deps{
		Store:              st,
		Generator:          a.newGenerator(),
		Parser:             parser.New(parser.Options{AllowEmpty: cfg.AllowEmptyPlaylist}),
		Publisher:          publisher,
		Logger:             log,
		PersistenceTimeout: cfg.PersistenceTimeout,
	}
	a.Sessions = service.NewSessionManager(a.Deps)

	log.Info("application wired",
		zap.String("store", cfg.StoreDriver),
		zap.String("events", cfg.EventsBackend),
		zap.String("llm", cfg.DefaultLLM),
	)

	return a, nil
}

// newGenerator returns the rate limited generation client. Without a usable
// client every turn fails with the API key message.
func (a *App) newGenerator() llm.Generator {
	cfg := a.Config

	client, err := llm.NewClient(llm.Provider(cfg.DefaultLLM), cfg.APIKey())
	if err != nil {
		a.Logger.Warn("generation disabled", zap.Error(err))
		return unavailableGenerator{err: err}
	}

	gen := llm.NewGenerator(client, llm.GeneratorConfig{
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.GenerationMaxTokens,
		Temperature: cfg.GenerationTemperature,
		Timeout:     cfg.GenerationTimeout,
	}, a.Logger)

	return llm.NewRateLimitedGenerator(gen, cfg.GenerationRatePerMinute)
}

func (a *App) openEvents(ctx context.Context) (events.Publisher, error) {
	cfg := a.Config

	switch cfg.EventsBackend {
	case "nats":
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.closers = append(a.closers, nc.Close)

		streams := natsclient.NewStreamManager(nc)
		if err := streams.EnsureStream(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure stream: %w", err)
		}
		a.History = streams
		a.Checks["nats"] = nc
		return streams, nil

	case "redis":
		rdb, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { rdb.Close() })
		a.Checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		return events.NewRedisPublisher(rdb, cfg.RedisChannel), nil

	default:
		return events.Nop{}, nil
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type unavailableGenerator struct {
	err error
}

func (g unavailableGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", g.err
}
