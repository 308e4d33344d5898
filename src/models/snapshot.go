package models

import "time"

// MSnapshot is the single read-consistent aggregate published to subscribers.
// It is immutable once assembled; the cache replaces the whole value on
// refresh, it never mutates a published snapshot.
type MSnapshot struct {
	// Series per granularity name ("minute", "hour"), one MSeries per
	// configured candidate (empty series included).
	SeriesByGranularity map[string][]MSeries `json:"series"`
	Poll                *MAuxRecord          `json:"poll"`
	Market              *MAuxRecord          `json:"market"`
	SnapshotTime        time.Time            `json:"snapshot_time"`
}
