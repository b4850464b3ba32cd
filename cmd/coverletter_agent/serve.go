package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/cover-letter-rag/internal/config"
	"github.com/jonathan/cover-letter-rag/internal/db"
	"github.com/jonathan/cover-letter-rag/internal/embedding"
	"github.com/jonathan/cover-letter-rag/internal/pipeline"
	"github.com/jonathan/cover-letter-rag/internal/server"
	"github.com/jonathan/cover-letter-rag/internal/server/ratelimit"
	"github.com/jonathan/cover-letter-rag/internal/types"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

var (
	servePort  int
	serveIndex string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: "Load the saved index and serve cover letter generation over HTTP. The server refuses to start " +
		"if the index file is inconsistent; without an index file it starts degraded until an admin rebuild.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveIndex, "index", "", "Index file to load (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveIndex != "" {
		cfg.IndexPath = serveIndex
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg, os.Stderr)

	embedder, closeEmbedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEmbedder() //nolint:errcheck

	holder := vectorindex.NewHolder(nil)
	indexer := newIndexer(cfg, embedder, holder, logger)

	idx, err := indexer.Load(ctx)
	switch {
	case types.IsCategory(err, types.CategoryIndexNotReady):
		logger.Warn("starting without an index; generation is unavailable until a rebuild", "path", cfg.IndexPath)
	case err != nil:
		return fmt.Errorf("failed to load index %s: %w", cfg.IndexPath, err)
	default:
		if got, want := idx.EmbedderName(), embedding.ModelName(embedder); got != want {
			return types.NewError(types.CategoryConfigurationError,
				fmt.Sprintf("index was built with embedder %q but %q is configured", got, want), nil)
		}
		logger.Info("index loaded", "path", cfg.IndexPath, "entries", idx.Len(), "dimension", idx.Dimension())
	}

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	opts := pipeline.Options{}
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = connectAuditLog(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		opts.Recorder = database
	}

	orchestrator := newOrchestrator(cfg, holder, embedder, client, opts, logger)
	indexer.OnSwap = func(*vectorindex.Index) { orchestrator.PurgeCache() }

	srvCfg := server.Config{
		Port:           cfg.Port,
		Generator:      orchestrator,
		Index:          holder,
		Rebuilder:      indexer,
		RateLimit:      ratelimit.LoadConfig(),
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
	}
	if database != nil {
		srvCfg.Runs = database
	}
	if jwtCfg, err := config.NewJWTConfig(); err == nil {
		srvCfg.JWT = server.NewJWTService(jwtCfg)
	} else {
		logger.Warn("admin endpoints disabled", "reason", err)
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}

// connectAuditLog opens the Postgres audit log and creates its table if needed.
func connectAuditLog(ctx context.Context, databaseURL string) (*db.DB, error) {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to prepare database schema: %w", err)
	}
	return database, nil
}
