package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aozorabiz/kaisha-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kaisha-intel",
	Short: "Company intelligence service for Japanese SMB data",
	Long:  "Crawls company websites, searches external sources, extracts structured company data via Claude, and serves a local business-context dashboard.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()

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
