package embedding

import (
	"context"
	"time"

	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"golang.org/x/time/rate"
)

// DefaultMaxAttempts is spec.md §4.7's default bounded-retry count.
const DefaultMaxAttempts = 3

// Gateway wraps a Provider with dimension validation and bounded
// exponential-backoff retries, and is the only type other components
// depend on (spec.md §4.7: "the only component permitted to talk to an
// external embedding service").
type Gateway struct {
	provider    Provider
	dim         int
	maxAttempts int
	baseDelay   time.Duration
	limiter     *rate.Limiter
}

// Option configures a Gateway at construction.
type Option func(*Gateway)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithBaseDelay overrides the exponential-backoff base delay (default 100ms).
func WithBaseDelay(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.baseDelay = d
		}
	}
}

// New constructs a Gateway over provider, validating that dim (the
// system-wide constant D) is positive — spec.md §6 requires this
// validation to be fatal at startup, so callers should treat a non-nil
// error here as a construction failure worth aborting on.
func New(provider Provider, dim int, opts ...Option) (*Gateway, error) {
	if dim <= 0 {
		return nil, ingesterr.New(ingesterr.Internal, "embedding dimension must be positive")
	}
	g := &Gateway{
		provider:    provider,
		dim:         dim,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   100 * time.Millisecond,
		limiter:     rate.NewLimiter(rate.Every(10*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Dimension returns the validated system-wide vector dimension D.
func (g *Gateway) Dimension() int { return g.dim }

// Embed computes a single embedding, retrying transient provider
// failures with exponential backoff before surfacing
// ingesterr.EmbeddingUnavailable.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch computes embeddings for all texts in one provider call,
// retrying the whole batch on failure (spec.md §4.7/§7: embedding
// failures fail the batch atomically, no partial chunk set is written).
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.baseDelay << uint(attempt-1)
			select {
			case <-ctx.Done():
				return nil, ingesterr.Wrap(ingesterr.Cancelled, "embedding retry interrupted", ctx.Err())
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, ingesterr.Wrap(ingesterr.Cancelled, "embedding call interrupted", err)
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, ingesterr.Wrap(ingesterr.Cancelled, "embedding rate limiter interrupted", err)
		}

		vecs, err := g.provider.EmbedText(g.provider.ModelName(), texts)
		if err != nil {
			lastErr = err
			continue
		}
		for _, v := range vecs {
			if len(v) != g.dim {
				return nil, ingesterr.New(ingesterr.Internal, "embedding vector has wrong dimension")
			}
		}
		return vecs, nil
	}
	return nil, ingesterr.Wrap(ingesterr.EmbeddingUnavailable, "embedding provider exhausted retries", lastErr)
}

// Health reports whether the provider can currently serve requests.
func (g *Gateway) Health(ctx context.Context) error {
	_, err := g.Embed(ctx, "health-check")
	if err != nil {
		return ingesterr.Wrap(ingesterr.EmbeddingUnavailable, "embedding health check failed", err)
	}
	return nil
}
