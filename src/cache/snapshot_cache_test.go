package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsouthga/gop-primary-twitter-fun/src/analysis"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// fakeDB returns configurable rows; failAux makes aux lookups fail so that a
// refresh abandons mid-assembly.
type fakeDB struct {
	mu      sync.Mutex
	buckets []models.MBucket
	poll    *models.MAuxRecord
	market  *models.MAuxRecord
	failAux bool
}

func (f *fakeDB) Initialize() error                               { return nil }
func (f *fakeDB) IncrementMentionBucket(string, time.Time) error  { return nil }
func (f *fakeDB) SaveAuxRecord(models.MAuxRecord) error           { return nil }
func (f *fakeDB) CleanupOldData() error                           { return nil }
func (f *fakeDB) Close() error                                    { return nil }

func (f *fakeDB) QueryBucketsSince(since time.Time) ([]models.MBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MBucket
	for _, b := range f.buckets {
		if !b.BucketStart.Before(since) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeDB) LastBucketTotals(time.Time) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (f *fakeDB) LatestAuxRecord(kind string) (*models.MAuxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAux {
		return nil, errors.New("aux lookup failed")
	}
	if kind == models.AuxKindPoll {
		return f.poll, nil
	}
	return f.market, nil
}

func newTestCache(db *fakeDB) *SnapshotCache {
	log := logger.NewLogger(nil, "test")
	agg := analysis.NewSeriesAggregator(db, []string{"alice", "bob"}, log)
	return NewSnapshotCache(
		db, agg,
		[]models.MGranularity{models.GranularityMinute, models.GranularityHour},
		time.Second, log,
	)
}

// -----------------------------------------------------------------------------

func TestCurrentNonNilBeforeFirstRefresh(t *testing.T) {
	c := newTestCache(&fakeDB{})

	snap := c.Current()
	require.NotNil(t, snap)
	assert.NotNil(t, snap.SeriesByGranularity)
	assert.Nil(t, snap.Poll)
}

func TestRefreshPublishesAllGranularities(t *testing.T) {
	now := time.Now().UTC()
	db := &fakeDB{
		buckets: []models.MBucket{
			{Name: "alice", BucketStart: now.Truncate(time.Minute), Count: 2},
		},
		poll: &models.MAuxRecord{Kind: models.AuxKindPoll, Percentages: map[string]float64{"alice": 40}},
	}
	c := newTestCache(db)

	require.NoError(t, c.Refresh())

	snap := c.Current()
	require.Contains(t, snap.SeriesByGranularity, "minute")
	require.Contains(t, snap.SeriesByGranularity, "hour")
	// Every candidate present in every granularity view.
	assert.Len(t, snap.SeriesByGranularity["minute"], 2)
	require.NotNil(t, snap.Poll)
	assert.Nil(t, snap.Market)
	assert.False(t, snap.SnapshotTime.IsZero())
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	db := &fakeDB{
		poll: &models.MAuxRecord{Kind: models.AuxKindPoll, Percentages: map[string]float64{"alice": 40}},
	}
	c := newTestCache(db)
	require.NoError(t, c.Refresh())
	before := c.Current()

	db.mu.Lock()
	db.failAux = true
	db.mu.Unlock()

	assert.Error(t, c.Refresh())
	assert.Same(t, before, c.Current())
}

// recordingExchanger captures broadcast envelopes.
type recordingExchanger struct {
	mu        sync.Mutex
	envelopes []*models.MEnvelope
}

func (r *recordingExchanger) Broadcast(msg *models.MEnvelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, msg)
}
func (r *recordingExchanger) SubscriberCount() int { return 0 }
func (r *recordingExchanger) Start() error         { return nil }
func (r *recordingExchanger) Stop() error          { return nil }

func (r *recordingExchanger) byType(msgType string) []*models.MEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.MEnvelope
	for _, e := range r.envelopes {
		if e.Type == msgType {
			out = append(out, e)
		}
	}
	return out
}

func TestRefreshPushesNewAuxRecordsToSubscribers(t *testing.T) {
	db := &fakeDB{}
	c := newTestCache(db)
	exchanger := &recordingExchanger{}
	c.Exchanger = exchanger

	// No aux records yet: nothing to push.
	require.NoError(t, c.Refresh())
	assert.Empty(t, exchanger.envelopes)

	// A poll record lands between refreshes; the next refresh pushes it to
	// the already-connected subscribers.
	observed := time.Date(2016, 2, 1, 0, 0, 0, 0, time.UTC)
	db.mu.Lock()
	db.poll = &models.MAuxRecord{
		Kind:        models.AuxKindPoll,
		Percentages: map[string]float64{"alice": 40},
		ObservedAt:  observed,
		InsertedAt:  observed.Add(6 * time.Hour),
	}
	db.mu.Unlock()

	require.NoError(t, c.Refresh())
	polls := exchanger.byType(models.MsgPoll)
	require.Len(t, polls, 1)
	record, ok := polls[0].Data.(*models.MAuxRecord)
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"alice": 40}, record.Percentages)
	assert.Empty(t, exchanger.byType(models.MsgMarket))

	// Unchanged record: no re-push on subsequent refreshes.
	require.NoError(t, c.Refresh())
	assert.Len(t, exchanger.byType(models.MsgPoll), 1)

	// A newer insertion is pushed again; the market record rides its own
	// update independently.
	db.mu.Lock()
	newer := *db.poll
	newer.InsertedAt = db.poll.InsertedAt.Add(time.Hour)
	db.poll = &newer
	db.market = &models.MAuxRecord{
		Kind:        models.AuxKindMarket,
		Percentages: map[string]float64{"alice": 61},
		InsertedAt:  observed.Add(7 * time.Hour),
	}
	db.mu.Unlock()

	require.NoError(t, c.Refresh())
	assert.Len(t, exchanger.byType(models.MsgPoll), 2)
	assert.Len(t, exchanger.byType(models.MsgMarket), 1)
}

func TestConcurrentRefreshAndRead(t *testing.T) {
	now := time.Now().UTC()
	db := &fakeDB{
		buckets: []models.MBucket{
			{Name: "alice", BucketStart: now.Truncate(time.Minute), Count: 1},
		},
	}
	c := newTestCache(db)
	require.NoError(t, c.Refresh())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, c.Refresh())
			}
		}()
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := c.Current()
				// A published snapshot is always complete: both
				// granularities present, never a torn partial.
				require.Len(t, snap.SeriesByGranularity["minute"], 2)
				require.Len(t, snap.SeriesByGranularity["hour"], 2)
			}
		}()
	}
	wg.Wait()
}
