// Package runlog records backfill and reconciliation runs in sync.run_log.
// It is operational history only; correctness never depends on it — every run
// recomputes its state from the two stores.
package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lilymagnc/lilysync/internal/db"
)

// Entry is one row in sync.run_log.
type Entry struct {
	ID           int64          `json:"id"`
	Tool         string         `json:"tool"`
	Detail       string         `json:"detail"`
	Status       string         `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	RowsAffected int64          `json:"rows_affected"`
	Error        string         `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RunLog provides read/write access to sync.run_log.
type RunLog struct {
	pool db.Pool
}

// New creates a RunLog backed by the given connection pool.
func New(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a run and returns its ID. tool names the
// subcommand ("backfill", "reconcile"); detail narrows it (collection name,
// window/partition).
func (l *RunLog) Start(ctx context.Context, tool, detail string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO sync.run_log (tool, detail, status, started_at)
		 VALUES ($1, $2, 'running', now()) RETURNING id`,
		tool, detail,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start %s run", tool)
	}
	return id, nil
}

// Complete marks a run as successfully completed.
func (l *RunLog) Complete(ctx context.Context, runID, rowsAffected int64, metadata map[string]any) error {
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "runlog: marshal metadata")
		}
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE sync.run_log
		 SET status = 'complete', completed_at = now(), rows_affected = $1, metadata = $2
		 WHERE id = $3`,
		rowsAffected, metaJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %d", runID)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (l *RunLog) Fail(ctx context.Context, runID int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE sync.run_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %d", runID)
	}
	return nil
}

// ListRecent returns the most recent runs, newest first.
func (l *RunLog) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, tool, detail, status, started_at, completed_at, rows_affected, error, metadata
		 FROM sync.run_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list recent")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var completedAt *time.Time
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Tool, &e.Detail, &e.Status, &e.StartedAt, &completedAt, &e.RowsAffected, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		e.CompletedAt = completedAt
		if errStr != nil {
			e.Error = *errStr
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
