package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/matcher"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// Pipeline folds raw events into per-minute mention buckets: match the text
// against the candidate list, then one atomic increment per matched
// candidate. Events are not retained individually.
// -----------------------------------------------------------------------------

type Pipeline struct {
	DB      interfaces.IDatabase
	Matcher *matcher.Matcher
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPipeline(db interfaces.IDatabase, m *matcher.Matcher, log *logger.Logger) *Pipeline {
	return &Pipeline{
		DB:      db,
		Matcher: m,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Process folds a single event into the store. Increments commute, so no
// ordering is required among concurrent callers.
func (p *Pipeline) Process(event models.MRawEvent) {
	matched := p.Matcher.Match(event.Text)
	if len(matched) == 0 {
		return
	}

	bucketStart := event.Timestamp.UTC().Truncate(time.Minute)
	for _, name := range matched {
		if err := p.DB.IncrementMentionBucket(name, bucketStart); err != nil {
			// Transient store failure: the event is skipped, the stream
			// continues.
			p.Logger.Error("Failed to increment bucket for %s: %v", name, err)
		}
	}
}

// -----------------------------------------------------------------------------

// Run consumes the event channel until it closes or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, events <-chan models.MRawEvent, wg *sync.WaitGroup) {
	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					p.Logger.Info("Event stream closed")
					return
				}
				p.Process(event)
			case <-ctx.Done():
				return
			}
		}
	}()
}
