package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jonathan/cover-letter-rag/internal/chunking"
	"github.com/jonathan/cover-letter-rag/internal/config"
	"github.com/jonathan/cover-letter-rag/internal/embedding"
	"github.com/jonathan/cover-letter-rag/internal/generation"
	"github.com/jonathan/cover-letter-rag/internal/ingestion"
	"github.com/jonathan/cover-letter-rag/internal/llm"
	"github.com/jonathan/cover-letter-rag/internal/pipeline"
	"github.com/jonathan/cover-letter-rag/internal/retrieval"
	"github.com/jonathan/cover-letter-rag/internal/types"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

// loadAppConfig merges the config file, defaults, environment, and global flags.
func loadAppConfig() (config.Config, error) {
	var fileCfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		fileCfg = *loaded
	}
	if err := fileCfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}

	cfg := fileCfg.MergeWithDefaults(config.Defaults())
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes structured text logs to w.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newEmbedder builds the configured embedder. The returned close func is never nil.
func newEmbedder(ctx context.Context, cfg config.Config) (embedding.Embedder, func() error, error) {
	switch cfg.Embedder {
	case config.EmbedderGemini:
		if cfg.APIKey == "" {
			return nil, nil, types.NewError(types.CategoryConfigurationError,
				"GEMINI_API_KEY is required for the gemini embedder", nil)
		}
		e, err := embedding.NewGeminiEmbedder(ctx, cfg.EmbeddingModel, cfg.APIKey)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	default:
		return embedding.NewHashingEmbedder(cfg.EmbeddingDimension), func() error { return nil }, nil
	}
}

// newLLMClient builds the text generation client.
func newLLMClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, types.NewError(types.CategoryConfigurationError,
			"GEMINI_API_KEY is required for cover letter generation", nil)
	}
	tier, err := llm.ParseModelTier(cfg.ModelTier)
	if err != nil {
		return nil, types.NewError(types.CategoryConfigurationError, err.Error(), err)
	}
	llmCfg := llm.DefaultConfig()
	llmCfg.Tier = tier
	llmCfg.Model = cfg.Model
	llmCfg.Temperature = float32(cfg.Temperature)
	return llm.NewClient(ctx, llmCfg, cfg.APIKey)
}

// newIndexer wires record loading, chunking, and embedding into an Indexer that
// publishes into holder.
func newIndexer(cfg config.Config, embedder embedding.Embedder, holder *vectorindex.Holder, logger *slog.Logger) *pipeline.Indexer {
	builder := vectorindex.NewBuilder(embedder, logger)
	if cfg.BuildBatchSize > 0 {
		builder.BatchSize = cfg.BuildBatchSize
	}
	if cfg.BuildWorkers > 0 {
		builder.Workers = cfg.BuildWorkers
	}

	dataDir := cfg.DataDir
	return &pipeline.Indexer{
		Source: func(context.Context) (types.RecordSet, error) {
			return ingestion.LoadRecords(dataDir)
		},
		Chunker: chunking.NewBuilder(cfg.ChunkMaxChars, logger),
		Builder: builder,
		Holder:  holder,
		Path:    cfg.IndexPath,
		Logger:  logger,
	}
}

// newOrchestrator wires retrieval and generation over holder.
func newOrchestrator(cfg config.Config, holder *vectorindex.Holder, embedder embedding.Embedder,
	generator llm.Generator, opts pipeline.Options, logger *slog.Logger) *pipeline.Orchestrator {
	service := generation.NewService(generator, generation.Config{
		MaxTokens:      cfg.MaxTokens,
		MinWords:       cfg.MinWords,
		MaxWords:       cfg.MaxWords,
		TargetMinWords: cfg.TargetMinWords,
		TargetMaxWords: cfg.TargetMaxWords,
	}, logger)

	opts.Timeout = cfg.RequestTimeout()
	opts.CacheSize = cfg.CacheSize
	opts.CacheTTL = cfg.CacheTTL()
	opts.Logger = logger
	return pipeline.NewOrchestrator(retrieval.NewRetriever(holder, embedder, logger), service, opts)
}
