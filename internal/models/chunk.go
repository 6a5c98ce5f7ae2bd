package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// zonelessLayout matches timestamps written without an offset, which are
// taken to be UTC.
const zonelessLayout = "2006-01-02T15:04:05"

// Chunk is a contiguous window of words cut from a page-marked document.
type Chunk struct {
	ChunkID   int    `json:"chunk_id"`
	Text      string `json:"text"`
	Pages     []int  `json:"pages"`
	StartWord int    `json:"start_word"`
	EndWord   int    `json:"end_word"`
}

// ChunkRecord is a Chunk tagged with where and when it was produced.
// It is the unit stored in the chunk file and in the index metadata.
type ChunkRecord struct {
	Chunk
	SourceFile string    `json:"source_file"`
	CreatedAt  time.Time `json:"created_at"`
}

// UnmarshalJSON accepts created_at either as RFC 3339 or without a zone.
func (r *ChunkRecord) UnmarshalJSON(data []byte) error {
	type plain ChunkRecord
	aux := struct {
		*plain
		CreatedAt string `json:"created_at"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.CreatedAt = time.Time{}
	if aux.CreatedAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, aux.CreatedAt)
	if err != nil {
		t, err = time.Parse(zonelessLayout, aux.CreatedAt)
		if err != nil {
			return fmt.Errorf("invalid created_at %q", aux.CreatedAt)
		}
	}
	r.CreatedAt = t.UTC()
	return nil
}

// SearchResult is one ranked hit, best first, with a cosine score.
type SearchResult struct {
	Rank       int     `json:"rank"`
	Score      float32 `json:"score"`
	ChunkID    int     `json:"chunk_id"`
	Text       string  `json:"text"`
	Pages      []int   `json:"pages"`
	SourceFile string  `json:"source_file"`
}
