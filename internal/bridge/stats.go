package bridge

import "sync/atomic"

// Stats holds the bridge's mirror counters. Counters only ever increase;
// a restart resets them with the process.
type Stats struct {
	mirrored    atomic.Int64
	deleted     atomic.Int64
	skipped     atomic.Int64
	failed      atomic.Int64
	columnDrops atomic.Int64
	watchErrors atomic.Int64
}

// Snapshot is a point-in-time copy of the counters, served by /stats.
type Snapshot struct {
	Mirrored    int64 `json:"mirrored"`
	Deleted     int64 `json:"deleted"`
	Skipped     int64 `json:"skipped"`
	Failed      int64 `json:"failed"`
	ColumnDrops int64 `json:"column_drops"`
	WatchErrors int64 `json:"watch_errors"`
}

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		Mirrored:    s.mirrored.Load(),
		Deleted:     s.deleted.Load(),
		Skipped:     s.skipped.Load(),
		Failed:      s.failed.Load(),
		ColumnDrops: s.columnDrops.Load(),
		WatchErrors: s.watchErrors.Load(),
	}
}
