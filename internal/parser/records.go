package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"docindex/internal/helper"
	"docindex/internal/models"
)

// Enrich tags every chunk with its source file name and creation time.
func Enrich(chunks []models.Chunk, sourceFile string, createdAt time.Time) []models.ChunkRecord {
	records := make([]models.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = models.ChunkRecord{
			Chunk:      c,
			SourceFile: sourceFile,
			CreatedAt:  createdAt.UTC(),
		}
	}
	return records
}

// ChunkFileName returns the chunk file name for a processed text file,
// e.g. "paper.txt" -> "paper_chunks.json".
func ChunkFileName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + models.ChunkFileSuffix
}

func SaveChunkFile(path string, records []models.ChunkRecord) error {
	if records == nil {
		records = []models.ChunkRecord{}
	}
	if err := helper.WriteJSONAtomic(path, records); err != nil {
		return fmt.Errorf("failed to save chunks: %w", err)
	}
	log.Info().Msgf("Saved %d chunks to %s", len(records), path)
	return nil
}

func LoadChunkFile(path string) ([]models.ChunkRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []models.ChunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode chunk file %s: %w", path, err)
	}
	return records, nil
}
