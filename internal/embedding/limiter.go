package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimited waits on a token bucket before every call to the wrapped backend.
type rateLimited struct {
	Embedder
	limiter *rate.Limiter
}

// WithRateLimit wraps e so that it is called at most rps times per second.
// A non-positive rps returns e unchanged.
func WithRateLimit(e Embedder, rps float64, burst int) Embedder {
	if rps <= 0 {
		return e
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{Embedder: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Embedder.Embed(ctx, texts)
}
