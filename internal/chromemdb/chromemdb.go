package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// Match is one stored vector returned by a query, identified by the
// position it was added at.
type Match struct {
	Position int
	Score    float32
}

// VectorDBManager keeps one chromem-go collection as an exact, brute-force
// cosine similarity index. Vectors are addressed by insertion position.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// errNoEmbeddingFunc guards against chromem computing embeddings itself;
// every vector is supplied by the caller.
var errNoEmbeddingFunc = errors.New("embeddings must be supplied by the caller")

func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// NewVectorDBManager initializes an empty in-memory index.
func NewVectorDBManager(collectionName string) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return &VectorDBManager{db: db, collection: c}, nil
}

// Add appends vectors, assigning them positions offset, offset+1, ...
func (m *VectorDBManager) Add(ctx context.Context, offset int, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(offset + i),
			Embedding: v,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// Count returns the number of stored vectors.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// Dimension checks that positions 0..Count()-1 are all present with vectors
// of one length and returns that length.
func (m *VectorDBManager) Dimension(ctx context.Context) (int, error) {
	dim := 0
	for i := 0; i < m.Count(); i++ {
		doc, err := m.collection.GetByID(ctx, strconv.Itoa(i))
		if err != nil {
			return 0, fmt.Errorf("position %d: %v", i, err)
		}
		if i == 0 {
			dim = len(doc.Embedding)
		}
		if len(doc.Embedding) == 0 || len(doc.Embedding) != dim {
			return 0, fmt.Errorf("position %d: vector length %d, expected %d", i, len(doc.Embedding), dim)
		}
	}
	return dim, nil
}

// Query returns up to k matches ordered by descending score, ties broken by
// ascending position. Fewer than k vectors yield fewer matches.
func (m *VectorDBManager) Query(ctx context.Context, query []float32, k int) ([]Match, error) {
	n := m.Count()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	k = min(k, n)

	results, err := m.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q", r.ID)
		}
		matches = append(matches, Match{Position: pos, Score: r.Similarity})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Position < matches[j].Position
	})
	return matches, nil
}

// Export writes the collection in chromem's gob format, gzip compressed and
// AES-GCM encrypted on request. The encryption key is either empty or 32
// bytes long.
func (m *VectorDBManager) Export(filePath string, compress bool, encryptionKey string) error {
	log.Debug().Msgf("Collection name: %s", m.collection.Name)
	log.Debug().Msgf("File path: %s", filePath)
	log.Debug().Msgf("Compress: %t", compress)

	if err := m.db.ExportToFile(filePath, compress, encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads collectionName from a file written by Export.
func Import(filePath, collectionName, encryptionKey string) (*VectorDBManager, error) {
	db := chromem.NewDB()
	if err := db.ImportFromFile(filePath, encryptionKey, collectionName); err != nil {
		return nil, fmt.Errorf("failed to import database: %w", err)
	}
	c := db.GetCollection(collectionName, noEmbedding)
	if c == nil {
		return nil, fmt.Errorf("collection %q not found in %s", collectionName, filePath)
	}
	return &VectorDBManager{db: db, collection: c}, nil
}
