// Package embedding provides decorators around the embedding provider client.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/casavia/matchengine/internal/domain"
)

// RateLimitedEmbedder throttles provider calls through a shared token bucket.
// One limiter instance is created in the composition root and shared by the
// interactive sync path and the batch backfill, so both respect a single
// global provider rate budget.
type RateLimitedEmbedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limiting decorator. A nil limiter disables
// throttling.
func NewRateLimited(inner domain.Embedder, limiter *rate.Limiter) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{inner: inner, limiter: limiter}
}

// Embed waits for a token, then delegates. Context cancellation during the
// wait is reported as a provider failure so callers degrade uniformly.
func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("rate limit wait: %w", domain.ErrProviderUnavailable)
		}
	}
	return e.inner.Embed(ctx, text)
}

// HealthCheck delegates to the inner embedder when it supports probing.
func (e *RateLimitedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
