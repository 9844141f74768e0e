package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/playlist-assistant/pkg/logger"
	"github.com/capitalize-ai/playlist-assistant/pkg/metrics"
)

// PlaylistInstructions asks the model for a bare JSON song array.
const PlaylistInstructions = `You are a playlist assistant. Suggest songs that match the user's request.
Respond ONLY with a JSON array of objects with exactly two string fields, "title" and "artist".
Example: [{"title": "Levitating", "artist": "Dua Lipa"}]
Do not add any commentary before or after the array.`

// Generator turns a prompt into free-form text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorConfig holds generation settings.
type GeneratorConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ClientGenerator adapts a Client to the Generator interface.
type ClientGenerator struct {
	client Client
	config GeneratorConfig
	logger *logger.Logger
}

// NewGenerator creates a generator backed by client.
func NewGenerator(client Client, cfg GeneratorConfig, log *logger.Logger) *ClientGenerator {
	return &ClientGenerator{
		client: client,
		config: cfg,
		logger: log,
	}
}

// Generate sends prompt as a single user message and returns the raw response text.
func (g *ClientGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, &CompletionRequest{
		Model:       g.config.Model,
		System:      PlaylistInstructions,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.RecordGeneration(g.client.Name(), string(Classify(err)), duration)
		g.logger.Warn("generation failed",
			zap.String("provider", g.client.Name()),
			zap.String("failure", string(Classify(err))),
			zap.Error(err),
		)
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty completion response")
	}

	metrics.RecordGeneration(g.client.Name(), "ok", duration)
	metrics.RecordTokens(resp.Model, resp.TokensIn, resp.TokensOut)
	g.logger.Debug("generation completed",
		zap.String("provider", g.client.Name()),
		zap.String("model", resp.Model),
		zap.Int64("latency_ms", resp.LatencyMs),
		zap.String("stop_reason", resp.StopReason),
	)

	return resp.Content, nil
}
