package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lilymagnc/lilysync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lilysync",
	Short: "Firestore to Supabase synchronization for the flower-shop ERP",
	Long:  "Keeps the ERP's Firestore collections and Supabase tables convergent during migration: a live change-mirror bridge, a bulk backfill migrator, and a reconciliation tool that diffs and repairs the two stores.",
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
