package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tradedocs/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tradedocs",
	Short: "Trade finance document ingestion pipeline",
	Long:  "Ingests trade finance documents through validation, OCR, classification and field extraction, then checks completed document sets for UCP 600 discrepancies.",
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
