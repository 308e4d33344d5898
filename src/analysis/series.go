package analysis

import (
	"sort"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// SeriesAggregator reconstructs ordered per-candidate point sequences from the
// bucket store at a requested granularity.
// -----------------------------------------------------------------------------

type SeriesAggregator struct {
	DB     interfaces.IDatabase
	Logger *logger.Logger

	// Fixed candidate list; every candidate appears in every result, with an
	// empty series when it has no buckets in range.
	candidates []string
}

// -----------------------------------------------------------------------------

func NewSeriesAggregator(db interfaces.IDatabase, candidates []string, log *logger.Logger) *SeriesAggregator {
	return &SeriesAggregator{
		DB:         db,
		Logger:     log,
		candidates: candidates,
	}
}

// -----------------------------------------------------------------------------

// SeriesFor rebuilds the series for every candidate at granularity g, covering
// the window [now - lookback, now].
//
// Bucket timestamps are first normalized to unit offsets relative to the
// baseline (minute buckets collapse into hour groups for the hour
// granularity), then the absolute timestamp is reconstructed by adding the
// offset back to the baseline. The baseline is truncated to the unit so
// reconstructed points land on unit boundaries for every granularity.
func (a *SeriesAggregator) SeriesFor(g models.MGranularity, now time.Time) ([]models.MSeries, error) {
	unit := g.Unit()
	baseline := now.UTC().Add(-g.Lookback()).Truncate(unit)

	buckets, err := a.DB.QueryBucketsSince(baseline)
	if err != nil {
		return nil, err
	}

	// Sum counts per (candidate, unit offset).
	type key struct {
		name   string
		offset int64
	}
	grouped := make(map[key]int64)
	for _, b := range buckets {
		if b.BucketStart.Before(baseline) {
			continue
		}
		k := key{
			name:   b.Name,
			offset: int64(b.BucketStart.Sub(baseline) / unit),
		}
		grouped[k] += b.Count
	}

	points := make(map[string][]models.MSeriesPoint)
	for k, value := range grouped {
		points[k.name] = append(points[k.name], models.MSeriesPoint{
			Date:  baseline.Add(time.Duration(k.offset) * unit),
			Value: value,
		})
	}

	// One series per configured candidate, points ascending. Candidates
	// without buckets emit empty series so consumers always see the full set.
	out := make([]models.MSeries, 0, len(a.candidates))
	for _, name := range a.candidates {
		pts := points[name]
		sort.Slice(pts, func(i, j int) bool {
			return pts[i].Date.Before(pts[j].Date)
		})
		if pts == nil {
			pts = []models.MSeriesPoint{}
		}
		out = append(out, models.MSeries{Name: name, Points: pts})
	}

	return out, nil
}

// -----------------------------------------------------------------------------

// LastTotals returns the per-candidate mention total for the trailing unit of
// granularity g (the "current bucket" view pushed on every broadcast tick).
// Candidates with no mentions in the window report zero.
func (a *SeriesAggregator) LastTotals(g models.MGranularity, now time.Time) (map[string]int64, error) {
	totals, err := a.DB.LastBucketTotals(now.UTC().Add(-g.Unit()))
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(a.candidates))
	for _, name := range a.candidates {
		out[name] = totals[name]
	}

	return out, nil
}
