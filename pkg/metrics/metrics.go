// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationDuration tracks Generation Service call duration.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Generation Service call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// GenerationTokensTotal tracks total LLM tokens processed.
	GenerationTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// TurnsTotal tracks processed user turns by outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turns_total",
			Help: "Total user turns processed",
		},
		[]string{"outcome"},
	)

	// ParseResultsTotal tracks parser classifications.
	ParseResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parse_results_total",
			Help: "Generation outputs by parsed kind",
		},
		[]string{"kind"},
	)

	// PersistenceFailuresTotal tracks failed Persistence Service calls.
	PersistenceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_failures_total",
			Help: "Failed Persistence Service calls",
		},
		[]string{"operation"},
	)

	// PlaylistsCreatedTotal tracks playlists created.
	PlaylistsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playlists_created_total",
			Help: "Total playlists created",
		},
	)

	// SessionsActive tracks live orchestrator sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live conversation sessions",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records metrics for a Generation Service call.
func RecordGeneration(provider, status string, duration float64) {
	GenerationDuration.WithLabelValues(provider, status).Observe(duration)
}

// RecordTokens records token usage reported by a provider.
func RecordTokens(model string, tokensIn, tokensOut int) {
	GenerationTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	GenerationTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordPersistenceFailure counts a failed Persistence Service call.
func RecordPersistenceFailure(operation string) {
	PersistenceFailuresTotal.WithLabelValues(operation).Inc()
}
