package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docindex/internal/config"
	"docindex/internal/embedding"
	"docindex/internal/helper"
	"docindex/internal/parser"
	"docindex/internal/vectorindex"
)

const (
	configFilePath = "./configs/config.yaml"
	chunksDir      = "data/chunks"
)

func main() {
	// API keys may live in a local .env file
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:           "docindex",
		Short:         "Chunk a page-marked document, index its embeddings and search them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configFilePath, "path to config.yaml")

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
				cfg = config.Default()
			} else {
				return nil, fmt.Errorf("error loading config: %w", err)
			}
		}
		setupLogger(cfg.Log)
		log.Debug().Interface("config", cfg.Chunking).Msg("Loaded config")
		return cfg, nil
	}

	rootCmd.AddCommand(
		newChunkCmd(loadConfig),
		newBuildCmd(loadConfig),
		newSearchCmd(loadConfig),
	)

	setupLogger(config.LogConfig{Level: "info", Console: true})
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("docindex failed")
		os.Exit(1)
	}
}

type configLoader func(cmd *cobra.Command) (*config.Config, error)

func newChunkCmd(loadConfig configLoader) *cobra.Command {
	var input, outDir string

	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "split a page-marked text file into overlapping chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return chunkText(cfg, input, outDir)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "page-marked text file")
	cmd.Flags().StringVar(&outDir, "out-dir", chunksDir, "directory for the chunk file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newBuildCmd(loadConfig configLoader) *cobra.Command {
	var chunksPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "embed a chunk file and save the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return buildIndex(cmd.Context(), cfg, chunksPath)
		},
	}
	cmd.Flags().StringVar(&chunksPath, "chunks", "", "chunk file produced by the chunk command")
	_ = cmd.MarkFlagRequired("chunks")
	return cmd
}

func newSearchCmd(loadConfig configLoader) *cobra.Command {
	var topK int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "search the saved vector index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("top-k") {
				cfg.Search.TopK = topK
			}
			return search(cmd.Context(), cfg, strings.Join(args, " "), asJSON)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of results (defaults to search.top_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func chunkText(cfg *config.Config, input, outDir string) error {
	splitter, err := parser.NewSplitter(&cfg.Chunking)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	log.Info().Msgf("Chunking file: %s", filepath.Base(input))

	chunks, err := splitter.Split(string(data))
	if err != nil {
		return err
	}
	records := parser.Enrich(chunks, filepath.Base(input), time.Now())

	outPath := filepath.Join(outDir, parser.ChunkFileName(input))
	if err := parser.SaveChunkFile(outPath, records); err != nil {
		return err
	}
	log.Info().Msgf("Total chunks created: %d", len(records))
	return nil
}

func buildIndex(ctx context.Context, cfg *config.Config, chunksPath string) error {
	records, err := parser.LoadChunkFile(chunksPath)
	if err != nil {
		return err
	}
	log.Info().Msgf("Loaded %d chunks from %s", len(records), chunksPath)

	index, err := newIndex(cfg)
	if err != nil {
		return err
	}
	if err := index.Build(ctx, records); err != nil {
		return err
	}
	return index.Save(cfg.Index.IndexPath(), cfg.Index.MetadataPath())
}

func search(ctx context.Context, cfg *config.Config, query string, asJSON bool) error {
	index, err := newIndex(cfg)
	if err != nil {
		return err
	}
	if err := index.Load(ctx, cfg.Index.IndexPath(), cfg.Index.MetadataPath()); err != nil {
		return err
	}

	results, err := index.Search(ctx, query, cfg.Search.TopK)
	if err != nil {
		return err
	}

	if asJSON {
		helper.PrettyPrint(results)
		return nil
	}
	if len(results) == 0 {
		fmt.Println("No relevant context found.")
		return nil
	}
	for _, res := range results {
		fmt.Printf("Rank: %d\n", res.Rank)
		fmt.Printf("Cosine Similarity: %.4f\n", res.Score)
		fmt.Printf("Pages: %v\n", res.Pages)
		fmt.Println("Text Preview:")
		fmt.Println(res.Text)
		fmt.Println(strings.Repeat("-", 50))
	}
	return nil
}

func newIndex(cfg *config.Config) (*vectorindex.VectorIndex, error) {
	provider, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("error initializing embedder: %w", err)
	}
	return vectorindex.New(provider,
		vectorindex.WithBatchPolicy(embedding.BatchPolicy{
			Concurrency:       cfg.Embedding.Concurrency,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		}),
		vectorindex.WithCompression(cfg.Index.Compress),
		vectorindex.WithEncryptionKey(cfg.Index.EncryptionKey),
	), nil
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
}
