package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lilymagnc/lilysync/internal/docstore"
	"github.com/lilymagnc/lilysync/internal/sqlstore"
)

// fakeDocStore scripts change streams per collection. Collections without a
// script get an immediately closed channel.
type fakeDocStore struct {
	events map[string][]docstore.Change
}

func (f *fakeDocStore) Watch(ctx context.Context, collection string) (<-chan docstore.Change, error) {
	ch := make(chan docstore.Change, len(f.events[collection])+1)
	for _, ev := range f.events[collection] {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeDocStore) GetAll(ctx context.Context, collection string) ([]docstore.Document, error) {
	var docs []docstore.Document
	for _, ev := range f.events[collection] {
		docs = append(docs, ev.Doc)
	}
	return docs, nil
}

func (f *fakeDocStore) Close() error { return nil }

// recordedCall is one write observed by the fake relational store.
type recordedCall struct {
	method string
	table  string
	row    sqlstore.Row
	ids    []string
}

// fakeSQLStore records writes and simulates a destination schema missing a
// configurable set of columns.
type fakeSQLStore struct {
	mu          sync.Mutex
	calls       []recordedCall
	missingCols map[string]bool
	upsertErr   error
	deleteErr   error
}

func driftErr(table, col string) error {
	return &pgconn.PgError{
		Code:    "42703",
		Message: fmt.Sprintf(`column "%s" of relation "%s" does not exist`, col, table),
	}
}

func (f *fakeSQLStore) UpsertRow(ctx context.Context, table string, row sqlstore.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return f.upsertErr
	}

	// Report the first (sorted) payload column the schema lacks, mimicking
	// Postgres surfacing one undefined column per statement.
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		if f.missingCols[c] {
			return driftErr(table, c)
		}
	}

	copied := make(sqlstore.Row, len(row))
	for k, v := range row {
		copied[k] = v
	}
	f.calls = append(f.calls, recordedCall{method: "upsert", table: table, row: copied})
	return nil
}

func (f *fakeSQLStore) UpsertRows(ctx context.Context, table string, rows []sqlstore.Row) (int64, error) {
	for _, r := range rows {
		if err := f.UpsertRow(ctx, table, r); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

func (f *fakeSQLStore) DeleteByIDs(ctx context.Context, table string, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.calls = append(f.calls, recordedCall{method: "delete", table: table, ids: ids})
	return int64(len(ids)), nil
}

func (f *fakeSQLStore) SelectWindow(ctx context.Context, table, timeColumn string, from, to time.Time, pageSize int) ([]sqlstore.Row, error) {
	return nil, nil
}

func (f *fakeSQLStore) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}
