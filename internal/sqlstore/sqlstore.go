// Package sqlstore is the relational-store collaborator: upsert-by-id,
// delete-by-id-list, and windowed paginated reads against Supabase Postgres.
package sqlstore

import (
	"context"
	"time"
)

// Row is one relational record keyed by column name.
type Row = map[string]any

// Store is the seam the bridge, backfill, and reconcile engines write through.
type Store interface {
	// UpsertRow writes one row keyed on its id column.
	UpsertRow(ctx context.Context, table string, row Row) error

	// UpsertRows writes a batch of rows keyed on id. Rows may carry
	// heterogeneous key sets; absent keys become NULL.
	UpsertRows(ctx context.Context, table string, rows []Row) (int64, error)

	// DeleteByIDs removes the given ids.
	DeleteByIDs(ctx context.Context, table string, ids []string) (int64, error)

	// SelectWindow reads every row whose timeColumn falls in [from, to),
	// fetching fixed-size pages until a short page signals end-of-data.
	SelectWindow(ctx context.Context, table, timeColumn string, from, to time.Time, pageSize int) ([]Row, error)
}
