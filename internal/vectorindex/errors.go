package vectorindex

import "errors"

var (
	// ErrNotBuilt is returned by Save when nothing has been built or loaded.
	ErrNotBuilt = errors.New("index not built")
	// ErrNotLoaded is returned by Search before Build or Load.
	ErrNotLoaded = errors.New("index not loaded")
	// ErrNotFound is returned by Load when a persisted file is missing.
	ErrNotFound = errors.New("index file not found")
	// ErrEmbeddingProvider wraps provider failures and malformed vectors.
	ErrEmbeddingProvider = errors.New("embedding provider failed")
	// ErrCorruptIndex is returned by Load when the index and metadata
	// files cannot be read or do not line up.
	ErrCorruptIndex = errors.New("corrupt index")
)
