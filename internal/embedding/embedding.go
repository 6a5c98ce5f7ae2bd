package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docindex/internal/config"
)

const (
	defaultOllamaURL     = "http://localhost:11434"
	defaultOllamaModel   = "nomic-embed-text"
	defaultOpenRouterURL = "https://openrouter.ai/api/v1"
)

// langchainProvider adapts a langchaingo embedder to Provider.
type langchainProvider struct {
	name     string
	embedder *embeddings.EmbedderImpl
}

func (p *langchainProvider) Name() string {
	return p.name
}

func (p *langchainProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProvider, p.name, err)
	}
	if err := checkCount(p.name, len(vectors), len(texts)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.EmbeddingConfig) (Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	log.Debug().Interface("config", map[string]string{
		"base_url":        baseURL,
		"embedding_model": model,
	}).Msg("Loaded embedder config")

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &langchainProvider{name: "ollama", embedder: embedder}, nil
}

// NewOpenRouterEmbedder creates an embedder for any OpenAI compatible
// endpoint, OpenRouter by default.
func NewOpenRouterEmbedder(cfg *config.EmbeddingConfig) (Provider, error) {
	key := apiKey(cfg, "OPENROUTER_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding.model is required for openrouter")
	}

	log.Debug().Interface("config", map[string]string{
		"base_url":        baseURL,
		"embedding_model": cfg.Model,
	}).Msg("Loaded embedder config")

	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(key),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openrouter: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &langchainProvider{name: "openrouter", embedder: embedder}, nil
}

func init() {
	Register("ollama", NewOllamaEmbedder)
	Register("openrouter", NewOpenRouterEmbedder)
}
