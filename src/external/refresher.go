package external

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// Refresher fetches the poll and market feeds on a long fixed interval and
// appends the parsed records. The two sources are independent, parallel,
// isolated tasks: failure of one never blocks or fails the other, and a
// failed interval is simply skipped until the next tick.
// -----------------------------------------------------------------------------

type Refresher struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	DB      interfaces.IDatabase
	Logger  *logger.Logger

	// Candidate names the aux records are filtered to.
	candidates []string
}

// -----------------------------------------------------------------------------

func NewRefresher(cfg *models.MConfig, net interfaces.INetworkManager, db interfaces.IDatabase, candidates []string, log *logger.Logger) *Refresher {
	return &Refresher{
		Config:     cfg,
		Network:    net,
		DB:         db,
		Logger:     log,
		candidates: candidates,
	}
}

// -----------------------------------------------------------------------------

// RefreshAll runs both source refreshes concurrently and waits for both.
func (r *Refresher) RefreshAll() {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := r.refreshPoll(); err != nil {
			r.Logger.Error("Poll refresh failed: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		if err := r.refreshMarket(); err != nil {
			r.Logger.Error("Market refresh failed: %v", err)
		}
	}()

	wg.Wait()
}

// -----------------------------------------------------------------------------

func (r *Refresher) refreshPoll() error {
	if r.Config.External.PollURL == "" {
		return fmt.Errorf("poll url not configured")
	}

	// Cache-busting timestamp query param; the feed is aggressively cached.
	params := map[string]string{
		strconv.FormatInt(time.Now().UnixMilli(), 10): "",
	}
	body, err := r.Network.Get(r.Config.External.PollURL, params)
	if err != nil {
		return err
	}

	percentages, observed, err := parsePollBody(body)
	if err != nil {
		return err
	}

	return r.DB.SaveAuxRecord(models.MAuxRecord{
		Kind:        models.AuxKindPoll,
		Percentages: r.filter(percentages),
		ObservedAt:  observed,
		InsertedAt:  time.Now().UTC(),
	})
}

// -----------------------------------------------------------------------------

func (r *Refresher) refreshMarket() error {
	if r.Config.External.MarketURL == "" {
		return fmt.Errorf("market url not configured")
	}

	body, err := r.Network.Get(r.Config.External.MarketURL, nil)
	if err != nil {
		return err
	}

	percentages, observed, err := parseMarketBody(body)
	if err != nil {
		return err
	}

	return r.DB.SaveAuxRecord(models.MAuxRecord{
		Kind:        models.AuxKindMarket,
		Percentages: r.filter(percentages),
		ObservedAt:  observed,
		InsertedAt:  time.Now().UTC(),
	})
}

// -----------------------------------------------------------------------------

// filter keeps only tracked candidates so feed rows for withdrawn or
// unrelated names never reach subscribers.
func (r *Refresher) filter(percentages map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(r.candidates))
	for _, name := range r.candidates {
		if value, ok := percentages[name]; ok {
			out[name] = value
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Start refreshes both sources immediately, then on the configured interval
// until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)

	go func() {
		defer wg.Done()

		r.RefreshAll()

		ticker := time.NewTicker(time.Duration(r.Config.External.RefreshMinutes) * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.RefreshAll()
			case <-ctx.Done():
				return
			}
		}
	}()
}
