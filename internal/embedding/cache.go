package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// WrapLruCache returns p unchanged when size is not positive. A zero ttl
// keeps entries until they are evicted by size.
func WrapLruCache(p Provider, size int, ttl time.Duration) Provider {
	if p == nil || size <= 0 {
		return p
	}
	return &lruProvider{
		next:  p,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruProvider struct {
	next  Provider
	cache *expirable.LRU[string, []float32]
}

func (l *lruProvider) Name() string {
	return l.next.Name()
}

func (l *lruProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		keys[i] = cacheKey(l.next.Name(), text)
		if cached, ok := l.cache.Get(keys[i]); ok {
			vectors[i] = cloneEmbedding(cached)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		log.Debug().Int("texts", len(texts)).Msg("Embedding cache hit")
		return vectors, nil
	}

	res, err := l.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := checkCount(l.next.Name(), len(res), len(missing)); err != nil {
		return nil, err
	}
	for j, idx := range missingIdx {
		l.cache.Add(keys[idx], cloneEmbedding(res[j]))
		vectors[idx] = res[j]
	}
	return vectors, nil
}

func cacheKey(provider, text string) string {
	sum := sha256.Sum256([]byte(text))
	return provider + ":" + hex.EncodeToString(sum[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
