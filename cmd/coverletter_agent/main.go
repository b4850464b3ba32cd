// Package main provides the entry point for the cover letter RAG service and its CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "coverletter_agent",
	Short: "Cover letter generation with retrieval-augmented context",
	Long: "coverletter_agent builds a vector index over résumé, job description, and skill records, " +
		"and generates cover letters grounded in the most relevant records, from the CLI or over HTTP.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print progress boxes")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
