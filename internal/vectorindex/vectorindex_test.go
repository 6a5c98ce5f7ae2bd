package vectorindex

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docindex/internal/embedding"
	"docindex/internal/helper"
	"docindex/internal/models"
)

// tableProvider embeds from a fixed table and counts its calls.
type tableProvider struct {
	vectors map[string][]float32
	calls   atomic.Int32
}

func (p *tableProvider) Name() string { return "table" }

func (p *tableProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := p.vectors[text]
		if !ok {
			return nil, fmt.Errorf("%w: no vector for %q", embedding.ErrProvider, text)
		}
		out[i] = v
	}
	return out, nil
}

// hashProvider derives a positive 8-dimensional vector from the text hash.
type hashProvider struct{}

func (hashProvider) Name() string { return "hash" }

func (hashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		v := make([]float32, 8)
		for j := range v {
			v[j] = float32(sum[j]) + 1
		}
		out[i] = v
	}
	return out, nil
}

var createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func makeRecords(texts ...string) []models.ChunkRecord {
	records := make([]models.ChunkRecord, len(texts))
	for i, text := range texts {
		records[i] = models.ChunkRecord{
			Chunk: models.Chunk{
				ChunkID:   i + 1,
				Text:      text,
				Pages:     []int{i + 1},
				StartWord: i * 10,
				EndWord:   i*10 + 10,
			},
			SourceFile: "paper.txt",
			CreatedAt:  createdAt,
		}
	}
	return records
}

func orthogonal() *tableProvider {
	return &tableProvider{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
		"gamma": {0, 0, 1},
		"query": {0.1, 2, 0.3},
	}}
}

func paths(t *testing.T) (string, string) {
	dir := filepath.Join(t.TempDir(), "vector_store")
	return filepath.Join(dir, models.DefaultIndexFile), filepath.Join(dir, models.DefaultMetaFile)
}

func TestSearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	idx := New(orthogonal())
	require.NoError(t, idx.Build(ctx, makeRecords("alpha", "beta", "gamma")))
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 3, idx.Dimension())

	results, err := idx.Search(ctx, "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[0].ChunkID)
	assert.Equal(t, "beta", results[0].Text)
	assert.Equal(t, []int{2}, results[0].Pages)
	assert.Equal(t, "paper.txt", results[0].SourceFile)
	assert.InDelta(t, 0.987, results[0].Score, 1e-3)

	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, 3, results[1].ChunkID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchExactMatchScoresOne(t *testing.T) {
	ctx := context.Background()
	idx := New(orthogonal())
	require.NoError(t, idx.Build(ctx, makeRecords("alpha", "beta", "gamma")))

	results, err := idx.Search(ctx, "beta", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestSearchTopKBounds(t *testing.T) {
	ctx := context.Background()
	p := orthogonal()
	idx := New(p)
	require.NoError(t, idx.Build(ctx, makeRecords("alpha", "beta", "gamma")))
	calls := p.calls.Load()

	results, err := idx.Search(ctx, "query", 0)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, calls, p.calls.Load(), "no provider call for topK 0")

	results, err = idx.Search(ctx, "query", -3)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "query", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestSearchBeforeBuild(t *testing.T) {
	_, err := New(orthogonal()).Search(context.Background(), "query", 5)
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestSaveBeforeBuild(t *testing.T) {
	indexPath, metaPath := paths(t)
	err := New(orthogonal()).Save(indexPath, metaPath)
	require.ErrorIs(t, err, ErrNotBuilt)
	assert.NoFileExists(t, indexPath)
	assert.NoFileExists(t, metaPath)
}

func TestBuildDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	p := orthogonal()
	p.vectors["short"] = []float32{1, 1}

	idx := New(p)
	err := idx.Build(ctx, makeRecords("alpha", "short", "gamma"))
	require.ErrorIs(t, err, ErrEmbeddingProvider)
	assert.Contains(t, err.Error(), "chunk 2")

	indexPath, metaPath := paths(t)
	require.ErrorIs(t, idx.Save(indexPath, metaPath), ErrNotBuilt)
}

func TestBuildZeroVector(t *testing.T) {
	p := orthogonal()
	p.vectors["zero"] = []float32{0, 0, 0}

	err := New(p).Build(context.Background(), makeRecords("alpha", "zero"))
	require.ErrorIs(t, err, ErrEmbeddingProvider)
}

func TestBuildFailureKeepsPreviousContents(t *testing.T) {
	ctx := context.Background()
	idx := New(orthogonal())
	require.NoError(t, idx.Build(ctx, makeRecords("alpha", "beta")))

	err := idx.Build(ctx, makeRecords("gamma", "unknown"))
	require.ErrorIs(t, err, ErrEmbeddingProvider)
	require.ErrorIs(t, err, embedding.ErrProvider)

	assert.Equal(t, 2, idx.Len())
	results, err := idx.Search(ctx, "beta", 1)
	require.NoError(t, err)
	assert.Equal(t, "beta", results[0].Text)
}

func TestSearchQueryErrors(t *testing.T) {
	ctx := context.Background()
	p := orthogonal()
	p.vectors["flat"] = []float32{1, 1}
	idx := New(p)
	require.NoError(t, idx.Build(ctx, makeRecords("alpha", "beta")))

	_, err := idx.Search(ctx, "flat", 1)
	require.ErrorIs(t, err, ErrEmbeddingProvider)

	_, err = idx.Search(ctx, "missing", 1)
	require.ErrorIs(t, err, ErrEmbeddingProvider)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	key := strings.Repeat("s", 32)
	cases := []struct {
		name string
		opts []Option
	}{
		{"plain", nil},
		{"compressed", []Option{WithCompression(true)}},
		{"encrypted", []Option{WithCompression(true), WithEncryptionKey(key)}},
		{"concurrent build", []Option{WithBatchPolicy(embedding.BatchPolicy{Concurrency: 3})}},
	}

	texts := []string{
		"stroke incidence rose sharply",
		"dengue cases in the rainy season",
		"antibiotic resistance patterns",
		"vaccination coverage by district",
		"hospital admissions over time",
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			indexPath, metaPath := paths(t)

			built := New(hashProvider{}, tc.opts...)
			require.NoError(t, built.Build(ctx, makeRecords(texts...)))
			require.NoError(t, built.Save(indexPath, metaPath))
			assert.FileExists(t, indexPath)
			assert.FileExists(t, metaPath)

			want, err := built.Search(ctx, texts[3], 3)
			require.NoError(t, err)
			require.Len(t, want, 3)
			assert.Equal(t, 4, want[0].ChunkID)
			assert.InDelta(t, 1.0, want[0].Score, 1e-5)

			loaded := New(hashProvider{}, tc.opts...)
			require.NoError(t, loaded.Load(ctx, indexPath, metaPath))
			assert.Equal(t, built.Len(), loaded.Len())
			assert.Equal(t, 8, loaded.Dimension())
			assert.Equal(t, built.Records(), loaded.Records())

			got, err := loaded.Search(ctx, texts[3], 3)
			require.NoError(t, err)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].ChunkID, got[i].ChunkID)
				assert.Equal(t, want[i].Rank, got[i].Rank)
				assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
			}
		})
	}
}

func TestSaveOverwritesPreviousIndex(t *testing.T) {
	ctx := context.Background()
	indexPath, metaPath := paths(t)

	first := New(orthogonal())
	require.NoError(t, first.Build(ctx, makeRecords("alpha", "beta", "gamma")))
	require.NoError(t, first.Save(indexPath, metaPath))

	second := New(orthogonal())
	require.NoError(t, second.Build(ctx, makeRecords("gamma")))
	require.NoError(t, second.Save(indexPath, metaPath))

	loaded := New(orthogonal())
	require.NoError(t, loaded.Load(ctx, indexPath, metaPath))
	assert.Equal(t, 1, loaded.Len())

	entries, err := os.ReadDir(filepath.Dir(indexPath))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}

func TestLoadMissingFiles(t *testing.T) {
	ctx := context.Background()
	indexPath, metaPath := paths(t)

	err := New(orthogonal()).Load(ctx, indexPath, metaPath)
	require.ErrorIs(t, err, ErrNotFound)

	built := New(orthogonal())
	require.NoError(t, built.Build(ctx, makeRecords("alpha")))
	require.NoError(t, built.Save(indexPath, metaPath))
	require.NoError(t, os.Remove(metaPath))

	idx := New(orthogonal())
	err = idx.Load(ctx, indexPath, metaPath)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = idx.Search(ctx, "alpha", 1)
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestLoadCorruptIndex(t *testing.T) {
	ctx := context.Background()

	saved := func(t *testing.T) (string, string) {
		indexPath, metaPath := paths(t)
		idx := New(orthogonal())
		require.NoError(t, idx.Build(ctx, makeRecords("alpha", "beta", "gamma")))
		require.NoError(t, idx.Save(indexPath, metaPath))
		return indexPath, metaPath
	}

	t.Run("count mismatch", func(t *testing.T) {
		indexPath, metaPath := saved(t)
		require.NoError(t, helper.WriteJSONAtomic(metaPath, makeRecords("alpha", "beta")))
		err := New(orthogonal()).Load(ctx, indexPath, metaPath)
		require.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("garbage index", func(t *testing.T) {
		indexPath, metaPath := saved(t)
		require.NoError(t, os.WriteFile(indexPath, []byte("not an index"), 0o644))
		err := New(orthogonal()).Load(ctx, indexPath, metaPath)
		require.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("garbage metadata", func(t *testing.T) {
		indexPath, metaPath := saved(t)
		require.NoError(t, os.WriteFile(metaPath, []byte("{"), 0o644))
		err := New(orthogonal()).Load(ctx, indexPath, metaPath)
		require.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("wrong key", func(t *testing.T) {
		indexPath, metaPath := paths(t)
		idx := New(orthogonal(), WithEncryptionKey(strings.Repeat("a", 32)))
		require.NoError(t, idx.Build(ctx, makeRecords("alpha")))
		require.NoError(t, idx.Save(indexPath, metaPath))

		err := New(orthogonal(), WithEncryptionKey(strings.Repeat("b", 32))).Load(ctx, indexPath, metaPath)
		require.ErrorIs(t, err, ErrCorruptIndex)
	})
}

func TestLoadReplacesBuiltContents(t *testing.T) {
	ctx := context.Background()
	indexPath, metaPath := paths(t)

	saved := New(orthogonal())
	require.NoError(t, saved.Build(ctx, makeRecords("gamma")))
	require.NoError(t, saved.Save(indexPath, metaPath))

	idx := New(orthogonal())
	require.NoError(t, idx.Build(ctx, makeRecords("alpha", "beta")))
	require.NoError(t, idx.Load(ctx, indexPath, metaPath))

	results, err := idx.Search(ctx, "beta", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "gamma", results[0].Text)
}
