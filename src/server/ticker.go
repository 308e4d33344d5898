package server

import (
	"context"
	"sync"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// Broadcast tick: independent of per-subscriber lifecycle, every interval the
// server computes the current-bucket total per candidate per granularity and
// pushes a point message to every active subscriber. Point payloads are
// last-bucket snapshots, not deltas since the previous tick; consumers
// overwrite by timestamp.
// -----------------------------------------------------------------------------

// StartTicker runs the point broadcast loop until ctx is cancelled or a fatal
// store error occurs. On a fatal error one error message is broadcast, then
// the loop stops; ingestion and refresh loops are unaffected.
func (s *BroadcastServer) StartTicker(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)

	go func() {
		defer wg.Done()

		interval := time.Duration(s.Config.Broadcast.IntervalMs) * time.Millisecond
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.tick(); err != nil {
					s.Logger.Error("Broadcast tick failed fatally: %v", err)
					s.Broadcast(&models.MEnvelope{
						Type: models.MsgError,
						Data: models.MErrorPayload{Message: err.Error()},
					})
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// -----------------------------------------------------------------------------

func (s *BroadcastServer) tick() error {
	now := time.Now().UTC()

	totals := make(map[string]map[string]int64, len(s.Granularities))
	for _, g := range s.Granularities {
		t, err := s.Aggregator.LastTotals(g, now)
		if err != nil {
			return err
		}
		totals[g.String()] = t
	}

	s.Broadcast(&models.MEnvelope{
		Type: models.MsgPoint,
		Data: models.MPointPayload{
			Totals:    totals,
			Timestamp: now.Unix(),
		},
	})

	return nil
}
