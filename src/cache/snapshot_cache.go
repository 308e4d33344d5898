package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/analysis"
	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// SnapshotCache owns the single currently-valid snapshot. The snapshot is an
// immutable value behind an atomically swapped reference: Refresh assembles a
// complete replacement off to the side and publishes it in one store, so
// Current never observes a torn aggregate.
// -----------------------------------------------------------------------------

type SnapshotCache struct {
	DB            interfaces.IDatabase
	Aggregator    *analysis.SeriesAggregator
	Logger        *logger.Logger
	Granularities []models.MGranularity
	Interval      time.Duration

	// Optional fan-out target. When set, a refresh that picks up a newer
	// poll or market record pushes it to the active subscribers, so clients
	// connected before the record landed see it without reconnecting.
	Exchanger interfaces.IDataExchanger

	current atomic.Value // stores *models.MSnapshot

	// Serializes refreshes: two assemblies must never race the swap.
	refreshMu sync.Mutex
}

// -----------------------------------------------------------------------------

func NewSnapshotCache(
	db interfaces.IDatabase,
	agg *analysis.SeriesAggregator,
	granularities []models.MGranularity,
	interval time.Duration,
	log *logger.Logger,
) *SnapshotCache {
	c := &SnapshotCache{
		DB:            db,
		Aggregator:    agg,
		Logger:        log,
		Granularities: granularities,
		Interval:      interval,
	}

	// Published empty snapshot so Current is always non-nil.
	c.current.Store(&models.MSnapshot{
		SeriesByGranularity: make(map[string][]models.MSeries),
	})

	return c
}

// -----------------------------------------------------------------------------

// Current returns the most recently published snapshot. Never blocks on an
// in-flight refresh; readers get the prior complete snapshot until the swap.
func (c *SnapshotCache) Current() *models.MSnapshot {
	return c.current.Load().(*models.MSnapshot)
}

// -----------------------------------------------------------------------------

// Refresh assembles and atomically publishes a new snapshot. If any
// sub-aggregation fails the refresh is abandoned and the previous snapshot
// remains current.
func (c *SnapshotCache) Refresh() error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	now := time.Now().UTC()
	next := &models.MSnapshot{
		SeriesByGranularity: make(map[string][]models.MSeries, len(c.Granularities)),
		SnapshotTime:        now,
	}

	for _, g := range c.Granularities {
		series, err := c.Aggregator.SeriesFor(g, now)
		if err != nil {
			return err
		}
		next.SeriesByGranularity[g.String()] = series
	}

	poll, err := c.DB.LatestAuxRecord(models.AuxKindPoll)
	if err != nil {
		return err
	}
	next.Poll = poll

	market, err := c.DB.LatestAuxRecord(models.AuxKindMarket)
	if err != nil {
		return err
	}
	next.Market = market

	prev := c.Current()
	c.current.Store(next)

	c.pushAuxUpdates(prev, next)
	return nil
}

// -----------------------------------------------------------------------------

// pushAuxUpdates broadcasts poll/market records that are newer than the ones
// in the previously published snapshot.
func (c *SnapshotCache) pushAuxUpdates(prev, next *models.MSnapshot) {
	if c.Exchanger == nil {
		return
	}

	if auxNewer(prev.Poll, next.Poll) {
		c.Exchanger.Broadcast(&models.MEnvelope{Type: models.MsgPoll, Data: next.Poll})
	}
	if auxNewer(prev.Market, next.Market) {
		c.Exchanger.Broadcast(&models.MEnvelope{Type: models.MsgMarket, Data: next.Market})
	}
}

// -----------------------------------------------------------------------------

func auxNewer(old, new *models.MAuxRecord) bool {
	if new == nil {
		return false
	}
	return old == nil || new.InsertedAt.After(old.InsertedAt)
}

// -----------------------------------------------------------------------------

// Start runs the refresh loop until ctx is cancelled. Refresh failures are
// logged, never propagated to subscribers.
func (c *SnapshotCache) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(c.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.Refresh(); err != nil {
					c.Logger.Error("Snapshot refresh failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
