package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertByID bulk-upserts rows into table, keyed on the "id" column. The id is
// the sole join key between the two stores, so every mirrored table carries it
// as primary key and every upsert converges on it.
//
// The write goes through a temp table: COPY the rows in, then
// INSERT ... SELECT ... ON CONFLICT (id) DO UPDATE. Columns must include "id".
func UpsertByID(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	hasID := false
	for _, c := range columns {
		if c == "id" {
			hasID = true
			break
		}
	}
	if !hasID {
		return 0, eris.Errorf("db: upsert into %s: columns missing id", table)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert into %s: begin tx", table)
	}
	defer tx.Rollback(ctx)

	tempTable := fmt.Sprintf("_tmp_mirror_%s", strings.ReplaceAll(table, ".", "_"))

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert into %s: create temp table", table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert into %s: COPY into temp table", table)
	}

	var setClauses []string
	for _, col := range columns {
		if col == "id" {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	colList := quoteAndJoin(columns)
	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (id) DO UPDATE SET %s",
		sanitizeTable(table),
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		strings.Join(setClauses, ", "),
	)

	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert into %s: INSERT ON CONFLICT", table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: upsert into %s: commit tx", table)
	}

	return tag.RowsAffected(), nil
}

// DeleteByIDs removes the given ids from table. Missing ids are not an error;
// the delete converges to the same end state either way.
func DeleteByIDs(ctx context.Context, pool Pool, table string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", sanitizeTable(table))
	tag, err := pool.Exec(ctx, sql, ids)
	if err != nil {
		return 0, eris.Wrapf(err, "db: delete from %s", table)
	}
	return tag.RowsAffected(), nil
}

// sanitizeTable handles schema-qualified table names like "sync.run_log".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
