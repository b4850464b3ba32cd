package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cover-letter-rag/internal/observability"
	"github.com/jonathan/cover-letter-rag/internal/vectorindex"
)

var rolesIndex string

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the roles present in the saved index",
	RunE:  runRoles,
}

func init() {
	rolesCmd.Flags().StringVar(&rolesIndex, "index", "", "Index file (default from config)")
	rootCmd.AddCommand(rolesCmd)
}

func runRoles(cmd *cobra.Command, _ []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	if rolesIndex != "" {
		cfg.IndexPath = rolesIndex
	}

	idx, err := vectorindex.Load(cmd.Context(), cfg.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to load index %s: %w", cfg.IndexPath, err)
	}

	roles := idx.Roles()
	if cfg.Verbose {
		observability.NewPrinter(cmd.OutOrStdout()).PrintRoles(roles)
		return nil
	}
	for _, role := range roles {
		fmt.Fprintln(cmd.OutOrStdout(), role)
	}
	return nil
}
