package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/matcher"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// countingDB records increments as name -> bucketStart -> count.
type countingDB struct {
	mu         sync.Mutex
	increments map[string]map[time.Time]int64
	err        error
}

func newCountingDB() *countingDB {
	return &countingDB{increments: make(map[string]map[time.Time]int64)}
}

func (c *countingDB) Initialize() error { return nil }
func (c *countingDB) IncrementMentionBucket(name string, bucketStart time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.increments[name] == nil {
		c.increments[name] = make(map[time.Time]int64)
	}
	c.increments[name][bucketStart]++
	return nil
}
func (c *countingDB) QueryBucketsSince(time.Time) ([]models.MBucket, error) { return nil, nil }
func (c *countingDB) LastBucketTotals(time.Time) (map[string]int64, error)  { return nil, nil }
func (c *countingDB) SaveAuxRecord(models.MAuxRecord) error                 { return nil }
func (c *countingDB) LatestAuxRecord(string) (*models.MAuxRecord, error)    { return nil, nil }
func (c *countingDB) CleanupOldData() error                                 { return nil }
func (c *countingDB) Close() error                                          { return nil }

func (c *countingDB) count(name string, bucket time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.increments[name][bucket]
}

func newTestPipeline(db *countingDB) *Pipeline {
	m := matcher.NewMatcher([]models.MCandidate{
		{Name: "alice", Aliases: []string{"alice anderson"}},
		{Name: "bob"},
	})
	return NewPipeline(db, m, logger.NewLogger(nil, "test"))
}

// -----------------------------------------------------------------------------

func TestProcessIncrementsMatchedCandidates(t *testing.T) {
	db := newCountingDB()
	p := newTestPipeline(db)

	ts := time.Date(2016, 2, 1, 12, 0, 10, 0, time.UTC)
	p.Process(models.MRawEvent{Text: "Alice and Bob on stage", Timestamp: ts})

	bucket := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(1), db.count("alice", bucket))
	assert.Equal(t, int64(1), db.count("bob", bucket))
}

func TestProcessTruncatesToMinuteBucket(t *testing.T) {
	db := newCountingDB()
	p := newTestPipeline(db)

	// 12:00:10 and 12:00:40 share a bucket, 12:01:05 starts the next.
	base := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	p.Process(models.MRawEvent{Text: "alice", Timestamp: base.Add(10 * time.Second)})
	p.Process(models.MRawEvent{Text: "alice", Timestamp: base.Add(40 * time.Second)})
	p.Process(models.MRawEvent{Text: "alice", Timestamp: base.Add(65 * time.Second)})

	assert.Equal(t, int64(2), db.count("alice", base))
	assert.Equal(t, int64(1), db.count("alice", base.Add(time.Minute)))
}

func TestProcessIgnoresUnmatchedEvents(t *testing.T) {
	db := newCountingDB()
	p := newTestPipeline(db)

	p.Process(models.MRawEvent{Text: "nothing relevant", Timestamp: time.Now()})

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Empty(t, db.increments)
}

func TestProcessSurvivesStoreErrors(t *testing.T) {
	db := newCountingDB()
	db.err = errors.New("store down")
	p := newTestPipeline(db)

	// Must not panic; the stream keeps flowing.
	p.Process(models.MRawEvent{Text: "alice", Timestamp: time.Now()})

	db.mu.Lock()
	db.err = nil
	db.mu.Unlock()

	ts := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	p.Process(models.MRawEvent{Text: "alice", Timestamp: ts})
	assert.Equal(t, int64(1), db.count("alice", ts))
}

func TestRunConsumesUntilChannelCloses(t *testing.T) {
	db := newCountingDB()
	p := newTestPipeline(db)

	events := make(chan models.MRawEvent, 4)
	ts := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	events <- models.MRawEvent{Text: "alice", Timestamp: ts}
	events <- models.MRawEvent{Text: "bob", Timestamp: ts}
	close(events)

	var wg sync.WaitGroup
	p.Run(context.Background(), events, &wg)
	wg.Wait()

	assert.Equal(t, int64(1), db.count("alice", ts))
	assert.Equal(t, int64(1), db.count("bob", ts))
}

func TestRunStopsOnCancel(t *testing.T) {
	db := newCountingDB()
	p := newTestPipeline(db)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan models.MRawEvent)

	var wg sync.WaitGroup
	p.Run(ctx, events, &wg)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "pipeline did not stop on cancel")
	}
}
