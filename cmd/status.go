package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lilymagnc/lilysync/internal/runlog"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent backfill and reconcile runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := syncPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := runlog.New(pool).ListRecent(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		if len(entries) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		fmt.Printf("%-6s %-10s %-28s %-9s %-20s %-10s %s\n",
			"ID", "TOOL", "DETAIL", "STATUS", "STARTED", "ROWS", "ERROR")
		for _, e := range entries {
			errMsg := e.Error
			if len(errMsg) > 40 {
				errMsg = errMsg[:37] + "..."
			}
			fmt.Printf("%-6d %-10s %-28s %-9s %-20s %-10d %s\n",
				e.ID, e.Tool, e.Detail, e.Status,
				e.StartedAt.Format(time.DateTime), e.RowsAffected, errMsg)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
}
