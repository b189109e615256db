package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "proposal-intel",
	Short: "Signed-proposal extraction pipeline",
	Long:  "Syncs signed proposals from PandaDoc, extracts structured quote data via vision models with a deterministic text fallback, and materializes approved documents into leads and quotes.",
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
