package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cover-letter-rag/internal/config"
	"github.com/jonathan/cover-letter-rag/internal/server"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token for the /admin endpoints",
	Long:  "Sign an admin JWT with ADMIN_JWT_SECRET. The token is printed to stdout.",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Who the token is issued to (required)")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenSubject)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
