package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "claims-triage",
	Short: "Insurance claims intake and triage backend",
	Long:  "Extracts text from claim documents, parses structured fields via Claude, scores severity and complexity, flags fraud indicators, and routes claims to adjusters.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
