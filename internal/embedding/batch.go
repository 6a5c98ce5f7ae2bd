package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BatchPolicy controls how a batch of texts is sent to a Provider.
// The zero value embeds one text at a time, in order, without throttling.
type BatchPolicy struct {
	// Concurrency is the number of provider calls allowed in flight.
	Concurrency int
	// RequestsPerSecond throttles provider calls; 0 disables the limiter.
	RequestsPerSecond float64
}

// Batcher embeds a batch of texts one provider call per text. Results are
// always returned in input order, whatever the concurrency.
type Batcher struct {
	provider Provider
	policy   BatchPolicy
	limiter  *rate.Limiter
}

func NewBatcher(p Provider, policy BatchPolicy) *Batcher {
	b := &Batcher{provider: p, policy: policy}
	if policy.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), 1)
	}
	return b
}

func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	log.Info().Msgf("Generating embeddings (%s)...", b.provider.Name())

	if b.policy.Concurrency <= 1 {
		for i, text := range texts {
			log.Debug().Msgf("Embedding chunk %d/%d", i+1, len(texts))
			v, err := b.embedOne(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("chunk %d: %w", i+1, err)
			}
			vectors[i] = v
		}
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.policy.Concurrency)
	for i, text := range texts {
		g.Go(func() error {
			v, err := b.embedOne(gctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i+1, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedOne embeds a single text, honoring the rate limiter.
func (b *Batcher) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return b.embedOne(ctx, text)
}

func (b *Batcher) embedOne(ctx context.Context, text string) ([]float32, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	res, err := b.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if err := checkCount(b.provider.Name(), len(res), 1); err != nil {
		return nil, err
	}
	if len(res[0]) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty vector", ErrProvider, b.provider.Name())
	}
	return res[0], nil
}
