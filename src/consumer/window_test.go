package consumer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

func TestSeedSortsAndClips(t *testing.T) {
	now := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	w := NewRollingWindow(time.Hour)

	w.Seed([]models.MSeriesPoint{
		{Date: now.Add(-10 * time.Minute), Value: 3},
		{Date: now.Add(-2 * time.Hour), Value: 99},
		{Date: now.Add(-30 * time.Minute), Value: 1},
	}, now)

	points := w.Points()
	require.Len(t, points, 2)
	assert.Equal(t, now.Add(-30*time.Minute), points[0].Date)
	assert.Equal(t, now.Add(-10*time.Minute), points[1].Date)
}

func TestUpsertOverwritesByTimestamp(t *testing.T) {
	now := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	bucket := now.Truncate(time.Minute)
	w := NewRollingWindow(time.Hour)

	// Repeated ticks for the same bucket replace the value, never sum it.
	w.Upsert(models.MSeriesPoint{Date: bucket, Value: 2}, now)
	w.Upsert(models.MSeriesPoint{Date: bucket, Value: 5}, now)
	w.Upsert(models.MSeriesPoint{Date: bucket, Value: 7}, now)

	points := w.Points()
	require.Len(t, points, 1)
	assert.Equal(t, int64(7), points[0].Value)
}

func TestUpsertInsertsOutOfOrder(t *testing.T) {
	now := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	w := NewRollingWindow(time.Hour)

	w.Upsert(models.MSeriesPoint{Date: now.Add(-5 * time.Minute), Value: 1}, now)
	w.Upsert(models.MSeriesPoint{Date: now.Add(-15 * time.Minute), Value: 2}, now)
	w.Upsert(models.MSeriesPoint{Date: now.Add(-10 * time.Minute), Value: 3}, now)

	points := w.Points()
	require.Len(t, points, 3)
	assert.Equal(t, int64(2), points[0].Value)
	assert.Equal(t, int64(3), points[1].Value)
	assert.Equal(t, int64(1), points[2].Value)
}

func TestUpsertEvictsPastLookback(t *testing.T) {
	start := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	w := NewRollingWindow(time.Hour)

	w.Upsert(models.MSeriesPoint{Date: start, Value: 1}, start)

	// An hour later the first point has aged out.
	later := start.Add(61 * time.Minute)
	w.Upsert(models.MSeriesPoint{Date: later.Truncate(time.Minute), Value: 2}, later)

	points := w.Points()
	require.Len(t, points, 1)
	assert.Equal(t, int64(2), points[0].Value)
}

func TestPointsReturnsCopy(t *testing.T) {
	now := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	w := NewRollingWindow(time.Hour)
	w.Upsert(models.MSeriesPoint{Date: now, Value: 1}, now)

	points := w.Points()
	points[0].Value = 42

	assert.Equal(t, int64(1), w.Points()[0].Value)
	assert.Equal(t, 1, w.Len())
}
