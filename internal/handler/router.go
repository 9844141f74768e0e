package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/playlist-assistant/internal/middleware"
	"github.com/capitalize-ai/playlist-assistant/internal/service"
	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
)

// RouterConfig holds everything the HTTP surface is built from.
type RouterConfig struct {
	Sessions          *service.SessionManager
	History           EventHistory
	Checks            map[string]Pinger
	Logger            *logger.Logger
	JWTSecret         string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	healthHandler := NewHealthHandler(cfg.Checks)
	sessionHandler := NewSessionHandler(cfg.Sessions, cfg.Logger)
	playlistHandler := NewPlaylistHandler(cfg.Sessions, cfg.History, cfg.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/turns", sessionHandler.SubmitTurn)
			r.Put("/selection", sessionHandler.Select)
			r.Put("/playlist", sessionHandler.Rename)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", playlistHandler.List)
			r.Post("/", playlistHandler.Create)
			r.Get("/{id}/events", playlistHandler.Events)
		})
	})

	return r
}
