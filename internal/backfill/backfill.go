// Package backfill bulk-copies existing documents into the relational store.
// It is the one-time migration path; the bridge keeps the stores converged
// afterwards.
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lilymagnc/lilysync/internal/docstore"
	"github.com/lilymagnc/lilysync/internal/mapper"
	"github.com/lilymagnc/lilysync/internal/runlog"
	"github.com/lilymagnc/lilysync/internal/sqlstore"
)

// Recorder is the slice of runlog used here. A nil Recorder disables run
// history without affecting the copy itself.
type Recorder interface {
	Start(ctx context.Context, tool, detail string) (int64, error)
	Complete(ctx context.Context, runID, rowsAffected int64, metadata map[string]any) error
	Fail(ctx context.Context, runID int64, errMsg string) error
}

var _ Recorder = (*runlog.RunLog)(nil)

// Result summarizes one collection's backfill.
type Result struct {
	Collection string
	Total      int
	Migrated   int64
	Skipped    int
	Failed     int
}

// Runner copies whole collections from the document store into their mapped
// tables, chunked and rate limited so a multi-year backfill does not starve
// the production pool.
type Runner struct {
	ds        docstore.Store
	rs        sqlstore.Store
	reg       *mapper.Registry
	rec       Recorder
	chunkSize int
	limiter   *rate.Limiter
}

// New builds a Runner. chunkSize and ratePerSec fall back to safe defaults
// when non-positive.
func New(ds docstore.Store, rs sqlstore.Store, reg *mapper.Registry, rec Recorder, chunkSize int, ratePerSec float64) *Runner {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	return &Runner{
		ds:        ds,
		rs:        rs,
		reg:       reg,
		rec:       rec,
		chunkSize: chunkSize,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// Run backfills the named collections in order. An empty list means every
// registered collection. Collections fail independently; the first error is
// returned after the remaining collections have run.
func (r *Runner) Run(ctx context.Context, collections []string) ([]Result, error) {
	if len(collections) == 0 {
		collections = r.reg.Collections()
	}

	var results []Result
	var firstErr error
	for _, c := range collections {
		m, err := r.reg.Get(c)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res, err := r.runCollection(ctx, m)
		results = append(results, res)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

func (r *Runner) runCollection(ctx context.Context, m *mapper.Mapping) (Result, error) {
	log := zap.L().With(
		zap.String("component", "backfill"),
		zap.String("collection", m.Collection),
	)
	res := Result{Collection: m.Collection}

	runID := r.recordStart(ctx, m.Collection, log)
	started := time.Now()

	docs, err := r.ds.GetAll(ctx, m.Collection)
	if err != nil {
		err = eris.Wrapf(err, "backfill: fetch %s", m.Collection)
		r.recordFail(ctx, runID, err, log)
		return res, err
	}
	res.Total = len(docs)

	var rows []sqlstore.Row
	for _, doc := range docs {
		if doc.ID == docstore.SentinelID {
			continue
		}
		row := mapper.MapEntityToRow(m, doc)
		if col, missing := mapper.MissingRequired(m, row); missing {
			log.Warn("skipping record missing required field",
				zap.String("id", doc.ID),
				zap.String("column", col),
			)
			res.Skipped++
			continue
		}
		rows = append(rows, row)
	}

	for start := 0; start < len(rows); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		if err := r.limiter.Wait(ctx); err != nil {
			r.recordFail(ctx, runID, err, log)
			return res, eris.Wrapf(err, "backfill: %s interrupted", m.Collection)
		}

		n, err := r.rs.UpsertRows(ctx, m.Table, chunk)
		if err != nil {
			// The batch path is all-or-nothing; retry the chunk row by row so
			// one poisoned record does not discard its neighbors.
			log.Warn("chunk upsert failed, retrying row by row",
				zap.Int("chunk_start", start),
				zap.Int("chunk_len", len(chunk)),
				zap.Error(err),
			)
			n = r.upsertOneByOne(ctx, m.Table, chunk, &res, log)
		}
		res.Migrated += n

		log.Info("progress",
			zap.Int("processed", end),
			zap.Int("total", len(rows)),
			zap.Int64("migrated", res.Migrated),
		)
	}

	r.recordComplete(ctx, runID, res, log)
	log.Info("collection backfilled",
		zap.Int("total", res.Total),
		zap.Int64("migrated", res.Migrated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

func (r *Runner) upsertOneByOne(ctx context.Context, table string, chunk []sqlstore.Row, res *Result, log *zap.Logger) int64 {
	var n int64
	for _, row := range chunk {
		if err := r.rs.UpsertRow(ctx, table, row); err != nil {
			log.Error("row upsert failed",
				zap.Any("id", row["id"]),
				zap.Error(err),
			)
			res.Failed++
			continue
		}
		n++
	}
	return n
}

func (r *Runner) recordStart(ctx context.Context, collection string, log *zap.Logger) int64 {
	if r.rec == nil {
		return 0
	}
	id, err := r.rec.Start(ctx, "backfill", collection)
	if err != nil {
		log.Warn("run history unavailable", zap.Error(err))
		return 0
	}
	return id
}

func (r *Runner) recordComplete(ctx context.Context, runID int64, res Result, log *zap.Logger) {
	if r.rec == nil || runID == 0 {
		return
	}
	meta := map[string]any{
		"total":   res.Total,
		"skipped": res.Skipped,
		"failed":  res.Failed,
	}
	if err := r.rec.Complete(ctx, runID, res.Migrated, meta); err != nil {
		log.Warn("run history unavailable", zap.Error(err))
	}
}

func (r *Runner) recordFail(ctx context.Context, runID int64, cause error, log *zap.Logger) {
	if r.rec == nil || runID == 0 {
		return
	}
	if err := r.rec.Fail(ctx, runID, fmt.Sprintf("%v", cause)); err != nil {
		log.Warn("run history unavailable", zap.Error(err))
	}
}
