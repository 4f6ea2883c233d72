// Package reconcile diffs the two stores over a time window and repairs
// divergence: missing rows and status mismatches are upserted from the source,
// ghosts are deleted, probable duplicates are reported for a human. It is
// demonstrated for orders, the one collection with real money attached.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lilymagnc/lilysync/internal/docstore"
	"github.com/lilymagnc/lilysync/internal/mapper"
	"github.com/lilymagnc/lilysync/internal/resilience"
	"github.com/lilymagnc/lilysync/internal/runlog"
	"github.com/lilymagnc/lilysync/internal/sqlstore"
)

// Recorder is the slice of runlog used here; nil disables run history.
type Recorder interface {
	Start(ctx context.Context, tool, detail string) (int64, error)
	Complete(ctx context.Context, runID, rowsAffected int64, metadata map[string]any) error
	Fail(ctx context.Context, runID int64, errMsg string) error
}

var _ Recorder = (*runlog.RunLog)(nil)

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// MonthWindow parses "2006-01" into the window covering that calendar month.
func MonthWindow(month string) (Window, error) {
	from, err := time.Parse("2006-01", month)
	if err != nil {
		return Window{}, eris.Wrapf(err, "reconcile: parse month %q", month)
	}
	return Window{From: from, To: from.AddDate(0, 1, 0)}, nil
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.From.Format("2006-01-02"), w.To.Format("2006-01-02"))
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Options controls one reconciliation run.
type Options struct {
	// Branch restricts the run to one branch; empty means all branches.
	Branch string

	// Apply enables corrective writes. Without it the run is a dry run that
	// only classifies and reports.
	Apply bool
}

// Mismatch is a record present in both stores with diverging status.
type Mismatch struct {
	ID           string
	SourceStatus string
	DestStatus   string
}

// DupGroup is a set of source records sharing one fingerprint. IDs are sorted
// ascending by creation time; the first is the suspected original. The label
// is advisory, nothing in this group is ever written to.
type DupGroup struct {
	Fingerprint string
	IDs         []string
}

// Partition is the per-branch slice of a report. The four classification
// categories are mutually exclusive per record.
type Partition struct {
	Branch     string
	Sourced    int
	Stored     int
	Missing    []string
	Mismatches []Mismatch
	Ghosts     []string
	Duplicates []DupGroup

	Upserted   int
	Deleted    int
	WriteFails int
}

// Report is the outcome of one run. It is recomputed from scratch every run
// and never persisted; the printed summary and the run-log row are all that
// survive.
type Report struct {
	Window     Window
	Branch     string
	Applied    bool
	Partitions []Partition
}

// Engine diffs and repairs one collection's window.
type Engine struct {
	ds       docstore.Store
	rs       sqlstore.Store
	reg      *mapper.Registry
	rec      Recorder
	pageSize int
}

// New builds an Engine. pageSize bounds each relational fetch page and falls
// back to 1000 when non-positive.
func New(ds docstore.Store, rs sqlstore.Store, reg *mapper.Registry, rec Recorder, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Engine{ds: ds, rs: rs, reg: reg, rec: rec, pageSize: pageSize}
}

// Run reconciles orders for the window. Classification always happens;
// corrective writes only under opts.Apply. A corrective failure is logged and
// counted, never fatal, and a re-run converges because upserts key on id and
// ghost detection re-evaluates from current state.
func (e *Engine) Run(ctx context.Context, w Window, opts Options) (*Report, error) {
	log := zap.L().With(
		zap.String("component", "reconcile"),
		zap.String("window", w.String()),
	)

	m, err := e.reg.Get("orders")
	if err != nil {
		return nil, err
	}

	runID := e.recordStart(ctx, w, opts, log)

	docs, rows, err := e.fetch(ctx, m, w, opts.Branch)
	if err != nil {
		e.recordFail(ctx, runID, err, log)
		return nil, err
	}

	report := &Report{Window: w, Branch: opts.Branch, Applied: opts.Apply}
	report.Partitions = e.classify(docs, rows)

	if opts.Apply {
		for i := range report.Partitions {
			e.correct(ctx, m, &report.Partitions[i], docs, log)
		}
	}

	e.recordComplete(ctx, runID, report, log)
	return report, nil
}

// fetch pulls both sides of the window. The source side is filtered in memory;
// the relational side is paginated by the store.
func (e *Engine) fetch(ctx context.Context, m *mapper.Mapping, w Window, branch string) ([]docstore.Document, []sqlstore.Row, error) {
	all, err := e.ds.GetAll(ctx, m.Collection)
	if err != nil {
		return nil, nil, eris.Wrap(err, "reconcile: fetch source")
	}

	var docs []docstore.Document
	for _, doc := range all {
		if doc.ID == docstore.SentinelID {
			continue
		}
		if !w.contains(doc.TimeField("orderDate")) {
			continue
		}
		if branch != "" && doc.StringField("branch") != branch {
			continue
		}
		docs = append(docs, doc)
	}

	allRows, err := e.rs.SelectWindow(ctx, m.Table, m.WindowColumn, w.From, w.To, e.pageSize)
	if err != nil {
		return nil, nil, eris.Wrap(err, "reconcile: fetch destination")
	}

	var rows []sqlstore.Row
	for _, row := range allRows {
		if branch != "" && rowString(row, "branch_name") != branch {
			continue
		}
		rows = append(rows, row)
	}

	return docs, rows, nil
}

// classify partitions both sides by branch and assigns each record to exactly
// one category. A record in both stores with matching status lands nowhere.
func (e *Engine) classify(docs []docstore.Document, rows []sqlstore.Row) []Partition {
	parts := make(map[string]*Partition)
	part := func(branch string) *Partition {
		p, ok := parts[branch]
		if !ok {
			p = &Partition{Branch: branch}
			parts[branch] = p
		}
		return p
	}

	rowsByID := make(map[string]sqlstore.Row, len(rows))
	for _, row := range rows {
		rowsByID[rowString(row, "id")] = row
	}
	docsByID := make(map[string]docstore.Document, len(docs))
	for _, doc := range docs {
		docsByID[doc.ID] = doc
	}

	fingerprints := make(map[string]map[string][]docstore.Document)

	for _, doc := range docs {
		branch := doc.StringField("branch")
		p := part(branch)
		p.Sourced++

		row, found := rowsByID[doc.ID]
		switch {
		case !found:
			p.Missing = append(p.Missing, doc.ID)
		case doc.StringField("status") != rowString(row, "status"):
			p.Mismatches = append(p.Mismatches, Mismatch{
				ID:           doc.ID,
				SourceStatus: doc.StringField("status"),
				DestStatus:   rowString(row, "status"),
			})
		}

		if fingerprints[branch] == nil {
			fingerprints[branch] = make(map[string][]docstore.Document)
		}
		fp := orderFingerprint(doc)
		fingerprints[branch][fp] = append(fingerprints[branch][fp], doc)
	}

	for _, row := range rows {
		id := rowString(row, "id")
		p := part(rowString(row, "branch_name"))
		p.Stored++
		if _, found := docsByID[id]; !found {
			p.Ghosts = append(p.Ghosts, id)
		}
	}

	for branch, groups := range fingerprints {
		p := part(branch)
		for fp, members := range groups {
			if len(members) < 2 {
				continue
			}
			sort.Slice(members, func(i, j int) bool {
				return members[i].TimeField("createdAt").Before(members[j].TimeField("createdAt"))
			})
			ids := make([]string, len(members))
			for i, d := range members {
				ids[i] = d.ID
			}
			p.Duplicates = append(p.Duplicates, DupGroup{Fingerprint: fp, IDs: ids})
		}
		sort.Slice(p.Duplicates, func(i, j int) bool {
			return p.Duplicates[i].Fingerprint < p.Duplicates[j].Fingerprint
		})
	}

	out := make([]Partition, 0, len(parts))
	for _, p := range parts {
		sort.Strings(p.Missing)
		sort.Strings(p.Ghosts)
		sort.Slice(p.Mismatches, func(i, j int) bool { return p.Mismatches[i].ID < p.Mismatches[j].ID })
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Branch < out[j].Branch })
	return out
}

// correct applies the partition's corrective writes. Source is authoritative
// for missing and mismatched records; ghosts are deleted in one batch;
// duplicate groups are never written to.
func (e *Engine) correct(ctx context.Context, m *mapper.Mapping, p *Partition, docs []docstore.Document, log *zap.Logger) {
	docsByID := make(map[string]docstore.Document, len(docs))
	for _, doc := range docs {
		docsByID[doc.ID] = doc
	}

	upsertIDs := make([]string, 0, len(p.Missing)+len(p.Mismatches))
	upsertIDs = append(upsertIDs, p.Missing...)
	for _, mm := range p.Mismatches {
		upsertIDs = append(upsertIDs, mm.ID)
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("reconcile", "corrective upsert")

	for _, id := range upsertIDs {
		row := mapper.MapEntityToRow(m, docsByID[id])
		err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
			return e.rs.UpsertRow(ctx, m.Table, row)
		})
		if err != nil {
			log.Error("corrective upsert failed",
				zap.String("id", id),
				zap.String("table", m.Table),
				zap.Error(err),
			)
			p.WriteFails++
			continue
		}
		p.Upserted++
	}

	if len(p.Ghosts) > 0 {
		n, err := e.rs.DeleteByIDs(ctx, m.Table, p.Ghosts)
		if err != nil {
			log.Error("ghost delete failed",
				zap.Strings("ids", p.Ghosts),
				zap.String("table", m.Table),
				zap.Error(err),
			)
			p.WriteFails++
		} else {
			p.Deleted += int(n)
		}
	}
}

func rowString(row sqlstore.Row, col string) string {
	s, _ := row[col].(string)
	return s
}

func (e *Engine) recordStart(ctx context.Context, w Window, opts Options, log *zap.Logger) int64 {
	if e.rec == nil {
		return 0
	}
	detail := w.String()
	if opts.Branch != "" {
		detail += " branch=" + opts.Branch
	}
	id, err := e.rec.Start(ctx, "reconcile", detail)
	if err != nil {
		log.Warn("run history unavailable", zap.Error(err))
		return 0
	}
	return id
}

func (e *Engine) recordComplete(ctx context.Context, runID int64, report *Report, log *zap.Logger) {
	if e.rec == nil || runID == 0 {
		return
	}
	var upserted, deleted, missing, mismatched, ghosts, dups int
	for _, p := range report.Partitions {
		upserted += p.Upserted
		deleted += p.Deleted
		missing += len(p.Missing)
		mismatched += len(p.Mismatches)
		ghosts += len(p.Ghosts)
		dups += len(p.Duplicates)
	}
	meta := map[string]any{
		"applied":          report.Applied,
		"missing":          missing,
		"mismatched":       mismatched,
		"ghosts":           ghosts,
		"duplicate_groups": dups,
	}
	if err := e.rec.Complete(ctx, runID, int64(upserted+deleted), meta); err != nil {
		log.Warn("run history unavailable", zap.Error(err))
	}
}

func (e *Engine) recordFail(ctx context.Context, runID int64, cause error, log *zap.Logger) {
	if e.rec == nil || runID == 0 {
		return
	}
	if err := e.rec.Fail(ctx, runID, cause.Error()); err != nil {
		log.Warn("run history unavailable", zap.Error(err))
	}
}
