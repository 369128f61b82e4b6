package generator

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"
)

// Limited wraps a Generator with a token-bucket rate limit. Calls block
// until a slot is available or the context is canceled. It shields the
// upstream service from bursts when many users submit turns at once.
type Limited struct {
	inner   Generator
	limiter *rate.Limiter
}

// NewLimited wraps gen with a limit of callsPerSecond and the given burst.
func NewLimited(gen Generator, callsPerSecond float64, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	return &Limited{
		inner:   gen,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst),
	}
}

// Name returns the wrapped provider name.
func (g *Limited) Name() string { return g.inner.Name() }

// GenerateText waits for a rate slot, then delegates.
func (g *Limited) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", textErr(g.inner.Name(), err)
	}
	return g.inner.GenerateText(ctx, req)
}

// GenerateObject waits for a rate slot, then delegates.
func (g *Limited) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, objectErr(g.inner.Name(), err)
	}
	return g.inner.GenerateObject(ctx, req)
}
