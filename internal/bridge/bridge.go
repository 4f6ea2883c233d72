// Package bridge mirrors document-store changes into the relational store in
// near real time, one watch per collection, for the lifetime of a session.
package bridge

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lilymagnc/lilysync/internal/docstore"
	"github.com/lilymagnc/lilysync/internal/mapper"
	"github.com/lilymagnc/lilysync/internal/sqlstore"
)

// Bridge replays document changes into relational tables. Changes to one
// collection apply in source delivery order; collections interleave freely.
type Bridge struct {
	ds               docstore.Store
	rs               sqlstore.Store
	reg              *mapper.Registry
	maxColumnRetries int
	stats            Stats
}

// New wires a bridge over the two store handles. maxColumnRetries bounds how
// many schema-drift columns one change may shed before being abandoned.
func New(ds docstore.Store, rs sqlstore.Store, reg *mapper.Registry, maxColumnRetries int) *Bridge {
	if maxColumnRetries <= 0 {
		maxColumnRetries = 6
	}
	return &Bridge{
		ds:               ds,
		rs:               rs,
		reg:              reg,
		maxColumnRetries: maxColumnRetries,
	}
}

// Stats returns a snapshot of the mirror counters.
func (b *Bridge) Stats() Snapshot {
	return b.stats.snapshot()
}

// Run opens one watch per registered collection and consumes changes until
// ctx is canceled or every watch has ended. A failed watch stops mirroring
// for that collection only; restarting the process is the recovery path.
func (b *Bridge) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "bridge"))

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range b.reg.All() {
		ch, err := b.ds.Watch(ctx, m.Collection)
		if err != nil {
			return eris.Wrapf(err, "bridge: open watch on %s", m.Collection)
		}
		g.Go(func() error {
			b.consume(ctx, m, ch)
			return nil
		})
	}

	log.Info("bridge active", zap.Int("collections", len(b.reg.All())))
	err := g.Wait()
	log.Info("bridge stopped", zap.Error(ctx.Err()))
	return err
}

// consume applies one collection's change stream in delivery order. Each event
// runs to completion, retry loop included, before the next one starts.
func (b *Bridge) consume(ctx context.Context, m *mapper.Mapping, ch <-chan docstore.Change) {
	log := zap.L().With(
		zap.String("component", "bridge"),
		zap.String("collection", m.Collection),
	)

	for ev := range ch {
		if ev.Err != nil {
			// Transport failure: this collection is no longer mirrored until
			// the process restarts. Resubscription is an operational concern.
			log.Error("watch failed, collection no longer mirrored", zap.Error(ev.Err))
			b.stats.watchErrors.Add(1)
			return
		}
		b.apply(ctx, m, ev, log)
	}
}

func (b *Bridge) apply(ctx context.Context, m *mapper.Mapping, ev docstore.Change, log *zap.Logger) {
	if ev.Doc.ID == docstore.SentinelID {
		return
	}

	if ev.Kind == docstore.Removed {
		if _, err := b.rs.DeleteByIDs(ctx, m.Table, []string{ev.Doc.ID}); err != nil {
			log.Error("delete failed",
				zap.String("id", ev.Doc.ID),
				zap.String("table", m.Table),
				zap.Error(err),
			)
			b.stats.failed.Add(1)
			return
		}
		b.stats.deleted.Add(1)
		return
	}

	row := mapper.MapEntityToRow(m, ev.Doc)

	if col, missing := mapper.MissingRequired(m, row); missing {
		// Retrying cannot supply a value the source never had.
		log.Warn("skipping record missing required field",
			zap.String("id", ev.Doc.ID),
			zap.String("column", col),
		)
		b.stats.skipped.Add(1)
		return
	}

	if err := b.upsertWithRetry(ctx, m.Table, row, log); err != nil {
		log.Error("abandoning change",
			zap.String("id", ev.Doc.ID),
			zap.String("table", m.Table),
			zap.String("event", ev.Kind.String()),
			zap.Error(err),
		)
		b.stats.failed.Add(1)
		return
	}
	b.stats.mirrored.Add(1)
}

// upsertWithRetry replays the upsert, shedding exactly the one column the
// destination reports missing on each schema-drift failure, up to the
// configured ceiling. Any other error fails immediately.
func (b *Bridge) upsertWithRetry(ctx context.Context, table string, row map[string]any, log *zap.Logger) error {
	for drops := 0; ; drops++ {
		err := b.rs.UpsertRow(ctx, table, row)
		if err == nil {
			return nil
		}

		col, isDrift := sqlstore.MissingColumn(err)
		if !isDrift || col == "id" {
			return err
		}
		if drops >= b.maxColumnRetries {
			return eris.Wrapf(err, "bridge: retry ceiling reached after dropping %d columns", drops)
		}
		if _, present := row[col]; !present {
			// The reported column isn't in our payload; dropping anything
			// else would be speculative.
			return err
		}

		delete(row, col)
		log.Warn("destination schema missing column, dropped from payload",
			zap.String("table", table),
			zap.String("column", col),
			zap.Int("drops", drops+1),
		)
		b.stats.columnDrops.Add(1)
	}
}
