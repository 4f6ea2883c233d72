package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/lilymagnc/lilysync/internal/db"
)

// Postgres implements Store over a pgx connection pool.
type Postgres struct {
	pool db.Pool
}

// NewPostgres wraps an existing pool. The pool is constructed at process start
// and passed in by reference so tests can substitute a mock.
func NewPostgres(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// UpsertRow writes one row keyed on id. Column order is deterministic so the
// same payload always produces the same statement.
func (p *Postgres) UpsertRow(ctx context.Context, table string, row Row) error {
	if _, ok := row["id"]; !ok {
		return eris.Errorf("sqlstore: upsert into %s: row missing id", table)
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	placeholders := make([]string, len(cols))
	quoted := make([]string, len(cols))
	var setClauses []string
	for i, c := range cols {
		args[i] = row[c]
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		quoted[i] = pgx.Identifier{c}.Sanitize()
		if c != "id" {
			setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", quoted[i], quoted[i]))
		}
	}

	conflict := "ON CONFLICT (id) DO NOTHING"
	if len(setClauses) > 0 {
		conflict = "ON CONFLICT (id) DO UPDATE SET " + strings.Join(setClauses, ", ")
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		quoteTable(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		conflict,
	)

	if _, err := p.pool.Exec(ctx, sql, args...); err != nil {
		return eris.Wrapf(err, "sqlstore: upsert %v into %s", row["id"], table)
	}
	return nil
}

// UpsertRows writes a batch keyed on id. The column list is the union of all
// row keys; rows lacking a key contribute NULL for it.
func (p *Postgres) UpsertRows(ctx context.Context, table string, rows []Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	colSet := make(map[string]bool)
	for _, r := range rows {
		for c := range r {
			colSet[c] = true
		}
	}
	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	values := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(cols))
		for j, c := range cols {
			vals[j] = r[c]
		}
		values[i] = vals
	}

	n, err := db.UpsertByID(ctx, p.pool, table, cols, values)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlstore: bulk upsert %d rows into %s", len(rows), table)
	}
	return n, nil
}

// DeleteByIDs removes the given ids from table.
func (p *Postgres) DeleteByIDs(ctx context.Context, table string, ids []string) (int64, error) {
	return db.DeleteByIDs(ctx, p.pool, table, ids)
}

// SelectWindow reads all rows with timeColumn in [from, to), page by page,
// until a short page signals end-of-data.
func (p *Postgres) SelectWindow(ctx context.Context, table, timeColumn string, from, to time.Time, pageSize int) ([]Row, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}

	sql := fmt.Sprintf(
		"SELECT * FROM %s WHERE %s >= $1 AND %s < $2 ORDER BY id LIMIT $3 OFFSET $4",
		quoteTable(table),
		pgx.Identifier{timeColumn}.Sanitize(),
		pgx.Identifier{timeColumn}.Sanitize(),
	)

	var out []Row
	for offset := 0; ; offset += pageSize {
		page, err := p.selectPage(ctx, sql, from, to, pageSize, offset)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlstore: select window from %s at offset %d", table, offset)
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func (p *Postgres) selectPage(ctx context.Context, sql string, from, to time.Time, limit, offset int) ([]Row, error) {
	rows, err := p.pool.Query(ctx, sql, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fds := rows.FieldDescriptions()
		r := make(Row, len(fds))
		for i, fd := range fds {
			r[string(fd.Name)] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func quoteTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}
