package backfill

import (
	"context"
	"sync"
	"time"

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

// fakeSQLStore records batch and single-row writes. Row IDs listed in badIDs
// fail both paths, forcing the per-row fallback to surface them.
type fakeSQLStore struct {
	mu          sync.Mutex
	batches     [][]sqlstore.Row
	singles     []sqlstore.Row
	badIDs      map[string]bool
	failBatches bool
}

func (f *fakeSQLStore) UpsertRows(ctx context.Context, table string, rows []sqlstore.Row) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, row := range rows {
		if id, _ := row["id"].(string); f.badIDs[id] {
			return 0, driftlessErr{}
		}
	}
	if f.failBatches {
		return 0, driftlessErr{}
	}
	f.batches = append(f.batches, rows)
	return int64(len(rows)), nil
}

func (f *fakeSQLStore) UpsertRow(ctx context.Context, table string, row sqlstore.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, _ := row["id"].(string); f.badIDs[id] {
		return driftlessErr{}
	}
	f.singles = append(f.singles, row)
	return nil
}

func (f *fakeSQLStore) DeleteByIDs(ctx context.Context, table string, ids []string) (int64, error) {
	return int64(len(ids)), nil
}

func (f *fakeSQLStore) SelectWindow(ctx context.Context, table, timeColumn string, from, to time.Time, pageSize int) ([]sqlstore.Row, error) {
	return nil, nil
}

type driftlessErr struct{}

func (driftlessErr) Error() string { return "null value in column violates not-null constraint" }

type runRecord struct {
	tool, detail string
	status       string
	rows         int64
	errMsg       string
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []runRecord
}

func (f *fakeRecorder) Start(ctx context.Context, tool, detail string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, runRecord{tool: tool, detail: detail, status: "running"})
	return int64(len(f.runs)), nil
}

func (f *fakeRecorder) Complete(ctx context.Context, runID, rowsAffected int64, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runID-1].status = "complete"
	f.runs[runID-1].rows = rowsAffected
	return nil
}

func (f *fakeRecorder) Fail(ctx context.Context, runID int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runID-1].status = "failed"
	f.runs[runID-1].errMsg = errMsg
	return nil
}
