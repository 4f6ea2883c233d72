package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lilymagnc/lilysync/internal/mapper"
	"github.com/lilymagnc/lilysync/internal/reconcile"
	"github.com/lilymagnc/lilysync/internal/runlog"
	"github.com/lilymagnc/lilysync/internal/sqlstore"
	"github.com/lilymagnc/lilysync/internal/syncmig"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Diff and repair orders between Firestore and Supabase",
	Long: `Fetches both stores for a calendar month, classifies every order as
missing / status-mismatched / ghost / probable-duplicate, and prints a
per-branch summary. Without --apply it is a dry run. With --apply, missing and
mismatched orders are upserted from Firestore and ghosts are deleted;
duplicate groups are only ever reported. Use --export to write the duplicate
groups to an xlsx workbook for review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		month, _ := cmd.Flags().GetString("month")
		branch, _ := cmd.Flags().GetString("branch")
		apply, _ := cmd.Flags().GetBool("apply")
		export, _ := cmd.Flags().GetBool("export")

		if month == "" {
			month = time.Now().UTC().Format("2006-01")
		}
		window, err := reconcile.MonthWindow(month)
		if err != nil {
			return err
		}

		pool, err := syncPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := syncmig.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "reconcile: migrate")
		}

		ds, err := openDocstore(ctx)
		if err != nil {
			return err
		}
		defer ds.Close()

		e := reconcile.New(
			ds,
			sqlstore.NewPostgres(pool),
			mapper.NewRegistry(),
			runlog.New(pool),
			cfg.Reconcile.PageSize,
		)

		report, err := e.Run(ctx, window, reconcile.Options{Branch: branch, Apply: apply})
		if err != nil {
			return eris.Wrap(err, "reconcile")
		}

		if err := report.Write(os.Stdout); err != nil {
			return err
		}
		if export {
			path := filepath.Join(cfg.Reconcile.ExportDir,
				fmt.Sprintf("duplicates-%s.xlsx", month))
			if err := report.ExportXLSX(path); err != nil {
				return err
			}
			fmt.Printf("\nDuplicate groups exported to %s\n", path)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().String("month", "", "calendar month to reconcile, YYYY-MM (default current month)")
	reconcileCmd.Flags().String("branch", "", "restrict to one branch")
	reconcileCmd.Flags().Bool("apply", false, "apply corrective writes (default dry run)")
	reconcileCmd.Flags().Bool("export", false, "export duplicate groups to xlsx")
	rootCmd.AddCommand(reconcileCmd)
}
