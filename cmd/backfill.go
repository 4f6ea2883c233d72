package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lilymagnc/lilysync/internal/backfill"
	"github.com/lilymagnc/lilysync/internal/mapper"
	"github.com/lilymagnc/lilysync/internal/runlog"
	"github.com/lilymagnc/lilysync/internal/sqlstore"
	"github.com/lilymagnc/lilysync/internal/syncmig"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Bulk-copy Firestore collections into Supabase",
	Long: `Copies whole collections into their mapped tables in rate-limited
chunks. By default every registered collection is backfilled; use
--collections to restrict the run. Safe to re-run: writes are upserts by id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := syncPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := syncmig.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "backfill: migrate")
		}

		ds, err := openDocstore(ctx)
		if err != nil {
			return err
		}
		defer ds.Close()

		collections := parseCollections(cmd)

		r := backfill.New(
			ds,
			sqlstore.NewPostgres(pool),
			mapper.NewRegistry(),
			runlog.New(pool),
			cfg.Backfill.ChunkSize,
			cfg.Backfill.RatePerSec,
		)

		results, err := r.Run(ctx, collections)
		for _, res := range results {
			fmt.Printf("%-18s %d/%d migrated, %d skipped, %d failed\n",
				res.Collection, res.Migrated, res.Total, res.Skipped, res.Failed)
		}
		if err != nil {
			return eris.Wrap(err, "backfill")
		}

		fmt.Println("Backfill complete")
		return nil
	},
}

func init() {
	backfillCmd.Flags().String("collections", "", "comma-separated collection names (default all)")
	rootCmd.AddCommand(backfillCmd)
}

func parseCollections(cmd *cobra.Command) []string {
	raw, _ := cmd.Flags().GetString("collections")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
