package consumer

import (
	"sort"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// RollingWindow is the consumer-side bounded point buffer: one per candidate
// per granularity. Points arrive both as the initial series and as per-tick
// point messages; the latter are last-bucket snapshots that may repeat a
// timestamp, so writes deduplicate by date (overwrite, never sum).
// -----------------------------------------------------------------------------

type RollingWindow struct {
	lookback time.Duration
	points   []models.MSeriesPoint // ascending by date
}

// -----------------------------------------------------------------------------

func NewRollingWindow(lookback time.Duration) *RollingWindow {
	return &RollingWindow{lookback: lookback}
}

// -----------------------------------------------------------------------------

// Seed replaces the buffer with an initial series, clipped to the lookback.
func (w *RollingWindow) Seed(points []models.MSeriesPoint, now time.Time) {
	w.points = make([]models.MSeriesPoint, 0, len(points))
	w.points = append(w.points, points...)
	sort.Slice(w.points, func(i, j int) bool {
		return w.points[i].Date.Before(w.points[j].Date)
	})
	w.evict(now)
}

// -----------------------------------------------------------------------------

// Upsert records one point. A point with a known timestamp overwrites the
// existing value; out-of-order arrivals are inserted in place. The front of
// the buffer is then evicted past the lookback horizon.
func (w *RollingWindow) Upsert(point models.MSeriesPoint, now time.Time) {
	idx := sort.Search(len(w.points), func(i int) bool {
		return !w.points[i].Date.Before(point.Date)
	})

	switch {
	case idx < len(w.points) && w.points[idx].Date.Equal(point.Date):
		w.points[idx].Value = point.Value
	case idx == len(w.points):
		w.points = append(w.points, point)
	default:
		w.points = append(w.points, models.MSeriesPoint{})
		copy(w.points[idx+1:], w.points[idx:])
		w.points[idx] = point
	}

	w.evict(now)
}

// -----------------------------------------------------------------------------

func (w *RollingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.lookback)
	start := 0
	for start < len(w.points) && w.points[start].Date.Before(cutoff) {
		start++
	}
	if start > 0 {
		w.points = append(w.points[:0], w.points[start:]...)
	}
}

// -----------------------------------------------------------------------------

// Points returns a copy of the buffered points, oldest first.
func (w *RollingWindow) Points() []models.MSeriesPoint {
	out := make([]models.MSeriesPoint, len(w.points))
	copy(out, w.points)
	return out
}

// -----------------------------------------------------------------------------

// Len returns the number of buffered points.
func (w *RollingWindow) Len() int {
	return len(w.points)
}
