package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cover-letter-rag/internal/observability"
	"github.com/jonathan/cover-letter-rag/internal/retrieval"
	"github.com/jonathan/cover-letter-rag/internal/types"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

var (
	buildDataDir   string
	buildIndexPath string
	buildEmbedder  string
	skipSmokeCheck bool
)

var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Build the vector index from corpus records",
	Long: "Load résumé, job description, skill mapping, and cover letter records from a directory of CSV " +
		"files (or a single JSON file), chunk and embed them, and save the index.",
	RunE: runBuildIndex,
}

func init() {
	buildIndexCmd.Flags().StringVar(&buildDataDir, "data-dir", "", "Directory of corpus CSV files, or a records JSON file")
	buildIndexCmd.Flags().StringVar(&buildIndexPath, "index", "", "Output index file")
	buildIndexCmd.Flags().StringVar(&buildEmbedder, "embedder", "", "Embedder to use (hashing or gemini)")
	buildIndexCmd.Flags().BoolVar(&skipSmokeCheck, "skip-check", false, "Skip the retrieval check after building")
	rootCmd.AddCommand(buildIndexCmd)
}

func runBuildIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	if buildDataDir != "" {
		cfg.DataDir = buildDataDir
	}
	if buildIndexPath != "" {
		cfg.IndexPath = buildIndexPath
	}
	if buildEmbedder != "" {
		cfg.Embedder = buildEmbedder
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	ctx := cmd.Context()
	logger := newLogger(cfg, cmd.ErrOrStderr())

	embedder, closeEmbedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEmbedder() //nolint:errcheck

	holder := vectorindex.NewHolder(nil)
	indexer := newIndexer(cfg, embedder, holder, logger)

	summary, err := indexer.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	printer.PrintIndexSummary(summary)

	if skipSmokeCheck {
		return nil
	}

	// Round-trip through the saved file so the check covers what serve will load.
	if cfg.IndexPath != "" {
		if _, err := indexer.Load(ctx); err != nil {
			return fmt.Errorf("failed to reload index: %w", err)
		}
	}
	roles := holder.Current().Roles()
	if len(roles) == 0 {
		return fmt.Errorf("index contains no roles")
	}
	retriever := retrieval.NewRetriever(holder, embedder, logger)
	results, err := retriever.Retrieve(ctx, retrieval.BuildQuery(roles[0], "", types.DefaultExperienceType), types.DefaultTopK)
	if err != nil {
		return fmt.Errorf("retrieval check failed: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("retrieval check returned no context for role %q", roles[0])
	}

	printer.PrintContext(types.ToContextItems(results))
	return nil
}
