package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"docindex/internal/config"
)

const defaultGeminiModel = "text-embedding-004"

type geminiProvider struct {
	client   *genai.Client
	model    string
	taskType string
}

func newGeminiProvider(cfg *config.EmbeddingConfig) (Provider, error) {
	key := apiKey(cfg, "GOOGLE_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not set")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiProvider{client: client, model: model, taskType: cfg.TaskType}, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	var embedConfig *genai.EmbedContentConfig
	if p.taskType != "" {
		embedConfig = &genai.EmbedContentConfig{TaskType: p.taskType}
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", ErrProvider, err)
	}
	if err := checkCount(p.Name(), len(resp.Embeddings), len(texts)); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("%w: gemini returned no values for text %d", ErrProvider, i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

func init() {
	Register("gemini", newGeminiProvider)
}
