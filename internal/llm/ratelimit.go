package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedGenerator bounds how often the wrapped generator is called.
type RateLimitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator allows perMinute calls per minute with a burst of one.
// A non-positive perMinute disables limiting.
func NewRateLimitedGenerator(next Generator, perMinute int) *RateLimitedGenerator {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimitedGenerator{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Generate waits for a token, then delegates.
func (g *RateLimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for generation quota: %w", err)
	}
	return g.next.Generate(ctx, prompt)
}
