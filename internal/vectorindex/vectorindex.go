// Package vectorindex stores chunk embeddings in an exact inner-product
// index next to the chunk records they were computed from.
//
// Vectors and records are aligned by position: the vector at position i
// was embedded from metadata record i. Both are persisted wholesale, the
// index in chromem-go's binary export format and the records as a JSON
// array.
package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/hupe1980/vecgo/distance"
	"github.com/rs/zerolog/log"

	"docindex/internal/chromemdb"
	"docindex/internal/embedding"
	"docindex/internal/helper"
	"docindex/internal/models"
)

type state int

const (
	stateEmpty state = iota
	stateBuilt
	stateLoaded
)

// VectorIndex is not safe for concurrent use.
type VectorIndex struct {
	batcher       *embedding.Batcher
	policy        embedding.BatchPolicy
	collection    string
	compress      bool
	encryptionKey string

	state     state
	store     *chromemdb.VectorDBManager
	metadata  []models.ChunkRecord
	dimension int
}

// Option configures a VectorIndex in New.
type Option func(*VectorIndex)

// WithBatchPolicy sets how Build sends chunk texts to the provider.
func WithBatchPolicy(p embedding.BatchPolicy) Option {
	return func(v *VectorIndex) { v.policy = p }
}

// WithCompression gzip-compresses the saved index file.
func WithCompression(compress bool) Option {
	return func(v *VectorIndex) { v.compress = compress }
}

// WithEncryptionKey encrypts the saved index file with a 32 byte key.
func WithEncryptionKey(key string) Option {
	return func(v *VectorIndex) { v.encryptionKey = key }
}

// WithCollection names the chromem collection holding the vectors.
func WithCollection(name string) Option {
	return func(v *VectorIndex) { v.collection = name }
}

// New returns an empty index that embeds through provider.
func New(provider embedding.Provider, opts ...Option) *VectorIndex {
	v := &VectorIndex{
		collection: models.DefaultCollection,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.batcher = embedding.NewBatcher(provider, v.policy)
	return v
}

// Len returns the number of indexed chunks.
func (v *VectorIndex) Len() int {
	return len(v.metadata)
}

// Dimension returns the embedding length, 0 for an empty index.
func (v *VectorIndex) Dimension() int {
	return v.dimension
}

// Records returns a copy of the metadata store in index order.
func (v *VectorIndex) Records() []models.ChunkRecord {
	return slices.Clone(v.metadata)
}

// Build embeds every record and replaces the index contents. On error the
// previous contents are kept.
func (v *VectorIndex) Build(ctx context.Context, records []models.ChunkRecord) error {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}

	raw, err := v.batcher.EmbedAll(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
	}

	dimension := 0
	vectors := make([][]float32, len(raw))
	for i, vec := range raw {
		if i == 0 {
			dimension = len(vec)
		}
		if len(vec) != dimension {
			return fmt.Errorf("%w: chunk %d has dimension %d, expected %d",
				ErrEmbeddingProvider, records[i].ChunkID, len(vec), dimension)
		}
		normalized, ok := distance.NormalizeL2Copy(vec)
		if !ok {
			return fmt.Errorf("%w: chunk %d has a zero vector", ErrEmbeddingProvider, records[i].ChunkID)
		}
		vectors[i] = normalized
	}
	log.Info().Msgf("Embedding dimension: %d", dimension)

	store, err := chromemdb.NewVectorDBManager(v.collection)
	if err != nil {
		return err
	}
	if err := store.Add(ctx, 0, vectors); err != nil {
		return err
	}

	v.store = store
	v.metadata = slices.Clone(records)
	v.dimension = dimension
	v.state = stateBuilt

	log.Info().Msgf("Index built with %d vectors", store.Count())
	return nil
}

// Save writes the index to indexPath and the metadata to metadataPath.
// Both files are written to temporary siblings first; the metadata is
// renamed into place before the index.
func (v *VectorIndex) Save(indexPath, metadataPath string) error {
	if v.state == stateEmpty {
		return ErrNotBuilt
	}

	err := helper.ReplaceFile(indexPath, func(tmpPath string) error {
		if err := v.store.Export(tmpPath, v.compress, v.encryptionKey); err != nil {
			return err
		}
		return helper.WriteJSONAtomic(metadataPath, v.metadata)
	})
	if err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	log.Info().Msg("Index and metadata saved")
	return nil
}

// Load replaces the index contents with the files written by Save.
func (v *VectorIndex) Load(ctx context.Context, indexPath, metadataPath string) error {
	for _, p := range []string{indexPath, metadataPath} {
		if !helper.FileExists(p) {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
	}

	store, err := chromemdb.Import(indexPath, v.collection, v.encryptionKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return err
	}
	var metadata []models.ChunkRecord
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("%w: metadata: %w", ErrCorruptIndex, err)
	}

	if store.Count() != len(metadata) {
		return fmt.Errorf("%w: %d vectors but %d metadata records", ErrCorruptIndex, store.Count(), len(metadata))
	}
	dimension, err := store.Dimension(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}

	v.store = store
	v.metadata = metadata
	v.dimension = dimension
	v.state = stateLoaded

	log.Info().Msgf("Index loaded with %d vectors", store.Count())
	return nil
}

// Search embeds query and returns the topK most similar chunks, best first.
// Scores are cosine similarities. A topK above the corpus size returns the
// whole corpus; topK <= 0 returns nothing.
func (v *VectorIndex) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	if v.state == stateEmpty {
		return nil, ErrNotLoaded
	}
	if topK <= 0 {
		return []models.SearchResult{}, nil
	}

	log.Debug().Msg("Embedding query...")
	raw, err := v.batcher.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
	}
	if v.dimension > 0 && len(raw) != v.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrEmbeddingProvider, len(raw), v.dimension)
	}
	query32, ok := distance.NormalizeL2Copy(raw)
	if !ok {
		return nil, fmt.Errorf("%w: query embedding is a zero vector", ErrEmbeddingProvider)
	}

	matches, err := v.store.Query(ctx, query32, topK)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Position < 0 || m.Position >= len(v.metadata) {
			return nil, fmt.Errorf("%w: match at position %d outside metadata", ErrCorruptIndex, m.Position)
		}
		chunk := v.metadata[m.Position]
		results = append(results, models.SearchResult{
			Rank:       len(results) + 1,
			Score:      m.Score,
			ChunkID:    chunk.ChunkID,
			Text:       chunk.Text,
			Pages:      chunk.Pages,
			SourceFile: chunk.SourceFile,
		})
	}
	return results, nil
}
