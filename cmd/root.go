package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sf-events-map/venuegeo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "venuegeo",
	Short: "Venue resolution pipeline for the SF events map",
	Long:  "Normalizes free-text venue strings from scraped event listings, resolves them to coordinates via Nominatim, and maintains the persistent geocode cache.",
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
