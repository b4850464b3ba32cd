package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cover-letter-rag/internal/fetch"
	"github.com/jonathan/cover-letter-rag/internal/ingestion"
	"github.com/jonathan/cover-letter-rag/internal/observability"
	"github.com/jonathan/cover-letter-rag/internal/pipeline"
	"github.com/jonathan/cover-letter-rag/internal/types"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

var (
	genResumePath  string
	genJobPath     string
	genJobURL      string
	genCompany     string
	genRole        string
	genExperience  string
	genTopK        int
	genWithContext bool
	genJSON        bool
	genIndex       string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a cover letter from a résumé and a job posting",
	Long: "Retrieve context for the role from the saved index and generate a cover letter. The job posting " +
		"can be read from a file (--job) or fetched from a job board URL (--job-url).",
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genResumePath, "resume", "r", "", "Path to the résumé text file (required)")
	generateCmd.Flags().StringVarP(&genJobPath, "job", "j", "", "Path to the job description text file")
	generateCmd.Flags().StringVar(&genJobURL, "job-url", "", "URL of the job posting")
	generateCmd.Flags().StringVar(&genCompany, "company", "", "Company name (required)")
	generateCmd.Flags().StringVar(&genRole, "role", "", "Job role (required)")
	generateCmd.Flags().StringVar(&genExperience, "experience", "", "Experience type: fresher or experienced")
	generateCmd.Flags().IntVar(&genTopK, "top-k", types.DefaultTopK, "Number of context chunks to retrieve")
	generateCmd.Flags().BoolVar(&genWithContext, "with-context", false, "Include the retrieved context in the output")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "Print the response as JSON")
	generateCmd.Flags().StringVar(&genIndex, "index", "", "Index file (default from config)")

	_ = generateCmd.MarkFlagRequired("resume")
	_ = generateCmd.MarkFlagRequired("company")
	_ = generateCmd.MarkFlagRequired("role")
	generateCmd.MarkFlagsMutuallyExclusive("job", "job-url")
	generateCmd.MarkFlagsOneRequired("job", "job-url")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	if genIndex != "" {
		cfg.IndexPath = genIndex
	}

	ctx := cmd.Context()
	logger := newLogger(cfg, cmd.ErrOrStderr())
	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)

	resume, _, err := ingestion.IngestFromFile(genResumePath)
	if err != nil {
		return fmt.Errorf("failed to read résumé: %w", err)
	}

	var jobDescription string
	if genJobURL != "" {
		var meta *ingestion.Metadata
		jobDescription, meta, err = ingestion.IngestFromURL(ctx, genJobURL, fetch.DefaultOptions(), logger)
		if err != nil {
			return fmt.Errorf("failed to fetch job posting: %w", err)
		}
		logger.Info("fetched job posting", "posting", meta)
	} else {
		jobDescription, _, err = ingestion.IngestFromFile(genJobPath)
		if err != nil {
			return fmt.Errorf("failed to read job description: %w", err)
		}
	}

	embedder, closeEmbedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEmbedder() //nolint:errcheck

	holder := vectorindex.NewHolder(nil)
	if _, err := newIndexer(cfg, embedder, holder, logger).Load(ctx); err != nil {
		return fmt.Errorf("failed to load index %s: %w", cfg.IndexPath, err)
	}

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	opts := pipeline.Options{}
	if cfg.Verbose && !genJSON {
		opts.OnStage = printer.PrintStage
	}
	orchestrator := newOrchestrator(cfg, holder, embedder, client, opts, logger)

	topK := genTopK
	req := types.GenerationRequest{
		ResumeContent:  resume,
		JobDescription: jobDescription,
		CompanyName:    genCompany,
		JobRole:        genRole,
		ExperienceType: genExperience,
		TopK:           &topK,
	}

	var resp types.Response
	if genWithContext {
		resp = orchestrator.GenerateWithContext(ctx, req)
	} else {
		resp = orchestrator.Generate(ctx, req)
	}

	if genJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	} else {
		if len(resp.RetrievedContext) > 0 {
			printer.PrintContext(resp.RetrievedContext)
		}
		printer.PrintResponse(resp)
	}

	if !resp.Success {
		return types.NewError(resp.Category, resp.Error, nil)
	}
	return nil
}
