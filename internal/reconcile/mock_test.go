package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lilymagnc/lilysync/internal/docstore"
	"github.com/lilymagnc/lilysync/internal/sqlstore"
)

type fakeDocStore struct {
	docs   map[string][]docstore.Document
	getErr error
}

func (f *fakeDocStore) Watch(ctx context.Context, collection string) (<-chan docstore.Change, error) {
	ch := make(chan docstore.Change)
	close(ch)
	return ch, nil
}

func (f *fakeDocStore) GetAll(ctx context.Context, collection string) ([]docstore.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.docs[collection], nil
}

func (f *fakeDocStore) Close() error { return nil }

// fakeSQLStore is a stateful in-memory table keyed by id, so corrective writes
// are visible to a subsequent run.
type fakeSQLStore struct {
	rows    map[string]sqlstore.Row
	failIDs map[string]bool

	upserts int
	deletes int
}

func newFakeSQLStore(rows ...sqlstore.Row) *fakeSQLStore {
	f := &fakeSQLStore{rows: make(map[string]sqlstore.Row)}
	for _, row := range rows {
		f.rows[row["id"].(string)] = row
	}
	return f
}

func (f *fakeSQLStore) UpsertRow(ctx context.Context, table string, row sqlstore.Row) error {
	id, _ := row["id"].(string)
	if f.failIDs[id] {
		return eris.New("permission denied for table orders")
	}
	copied := make(sqlstore.Row, len(row))
	for k, v := range row {
		copied[k] = v
	}
	f.rows[id] = copied
	f.upserts++
	return nil
}

func (f *fakeSQLStore) UpsertRows(ctx context.Context, table string, rows []sqlstore.Row) (int64, error) {
	for _, row := range rows {
		if err := f.UpsertRow(ctx, table, row); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

func (f *fakeSQLStore) DeleteByIDs(ctx context.Context, table string, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := f.rows[id]; ok {
			delete(f.rows, id)
			n++
		}
	}
	f.deletes++
	return n, nil
}

func (f *fakeSQLStore) SelectWindow(ctx context.Context, table, timeColumn string, from, to time.Time, pageSize int) ([]sqlstore.Row, error) {
	var ids []string
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []sqlstore.Row
	for _, id := range ids {
		out = append(out, f.rows[id])
	}
	return out, nil
}
