package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"docindex/internal/models"
)

type Config struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Log       LogConfig       `yaml:"log"`
}

type ChunkingConfig struct {
	MaxWords           int    `yaml:"max_words"`
	OverlapWords       int    `yaml:"overlap_words"`
	MinChunkWords      int    `yaml:"min_chunk_words"`
	BoilerplatePattern string `yaml:"boilerplate_pattern"`
	PageMarkerPattern  string `yaml:"page_marker_pattern"`
}

type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	TaskType          string        `yaml:"task_type"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CacheSize         int           `yaml:"cache_size"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

type IndexConfig struct {
	Dir           string `yaml:"dir"`
	IndexFile     string `yaml:"index_file"`
	MetadataFile  string `yaml:"metadata_file"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// IndexPath returns the location of the persisted similarity index.
func (c IndexConfig) IndexPath() string {
	return filepath.Join(c.Dir, c.IndexFile)
}

// MetadataPath returns the location of the persisted chunk metadata.
func (c IndexConfig) MetadataPath() string {
	return filepath.Join(c.Dir, c.MetadataFile)
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	cfg := defaults()
	cfg.resolvePaths()
	return cfg
}

// LoadConfig decodes path over the defaults, so keys absent from the file
// keep their default while explicit zero values are honored.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			MaxWords:           models.DefaultMaxWords,
			OverlapWords:       models.DefaultOverlap,
			MinChunkWords:      models.DefaultMinChunkLen,
			BoilerplatePattern: models.BoilerplateRegex,
			PageMarkerPattern:  models.PageMarkerRegex,
		},
		Embedding: EmbeddingConfig{
			Provider:    "gemini",
			Concurrency: 1,
		},
		Index: IndexConfig{
			Dir:          "index/vector_store",
			MetadataFile: models.DefaultMetaFile,
		},
		Search: SearchConfig{TopK: models.DefaultSearchTopK},
		Log:    LogConfig{Level: "info"},
	}
}

// resolvePaths fills file names that depend on other settings.
func (c *Config) resolvePaths() {
	if c.Index.IndexFile == "" {
		c.Index.IndexFile = models.DefaultIndexFile
		if c.Index.Compress {
			c.Index.IndexFile += ".gz"
		}
	}
	if c.Index.MetadataFile == "" {
		c.Index.MetadataFile = models.DefaultMetaFile
	}
}

// Validate reports settings that can never work. Chunking parameters are
// checked again by the splitter itself.
func (c *Config) Validate() error {
	if c.Chunking.OverlapWords >= c.Chunking.MaxWords {
		return fmt.Errorf("chunking.overlap_words (%d) must be smaller than chunking.max_words (%d)",
			c.Chunking.OverlapWords, c.Chunking.MaxWords)
	}
	if c.Embedding.Concurrency < 0 {
		return fmt.Errorf("embedding.concurrency must not be negative")
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("embedding.requests_per_second must not be negative")
	}
	if n := len(c.Index.EncryptionKey); n != 0 && n != 32 {
		return fmt.Errorf("index.encryption_key must be 32 bytes, got %d", n)
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log.level: %s", c.Log.Level)
	}
	return nil
}
