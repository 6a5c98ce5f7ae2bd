package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"docindex/internal/config"
)

// ErrProvider marks failures of the external embedding service, including
// malformed responses.
var ErrProvider = errors.New("embedding provider error")

// Provider maps texts to fixed-length vectors, one per text, in input order.
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type ProviderFactory func(cfg *config.EmbeddingConfig) (Provider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

// NewProvider builds the provider named in cfg and wraps it with the query
// cache when one is configured.
func NewProvider(cfg *config.EmbeddingConfig) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if key == "" {
		return nil, fmt.Errorf("embedding.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	p, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	return WrapLruCache(p, cfg.CacheSize, cfg.CacheTTL), nil
}

// apiKey prefers the configured key and falls back to the environment.
func apiKey(cfg *config.EmbeddingConfig, envVar string) string {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envVar))
	}
	return strings.TrimPrefix(key, "Bearer ")
}

func checkCount(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s returned %d embeddings for %d texts", ErrProvider, name, got, want)
	}
	return nil
}
