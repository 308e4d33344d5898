package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bsouthga/gop-primary-twitter-fun/src/helpers"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// Subscriber is the consumer-side connection state machine:
// CONNECTING -> ACTIVE -> DISCONNECTED. On transport error it retries a
// bounded number of times at a fixed delay before giving up and reporting
// failure.
// -----------------------------------------------------------------------------

type Subscriber struct {
	URL           string
	Attempts      int
	Delay         time.Duration
	Granularities []models.MGranularity
	Logger        *logger.Logger

	// windows[granularity][candidate]
	windows map[string]map[string]*RollingWindow
	mu      sync.RWMutex

	// Optional observers for received messages
	OnPoint func(models.MPointPayload)
	OnCount func(models.MCountPayload)
	OnError func(models.MErrorPayload)
}

// -----------------------------------------------------------------------------

func NewSubscriber(url string, attempts int, delay time.Duration, granularities []models.MGranularity, log *logger.Logger) *Subscriber {
	windows := make(map[string]map[string]*RollingWindow, len(granularities))
	for _, g := range granularities {
		windows[g.String()] = make(map[string]*RollingWindow)
	}

	return &Subscriber{
		URL:           url,
		Attempts:      attempts,
		Delay:         delay,
		Granularities: granularities,
		Logger:        log,
		windows:       windows,
	}
}

// -----------------------------------------------------------------------------

// Run connects and consumes until ctx is cancelled or the bounded reconnect
// attempts are exhausted, in which case the failure is returned to the
// operator.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		conn, err := s.connect(ctx)
		if err != nil {
			return err
		}

		err = s.consume(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		s.Logger.Warning("Connection lost: %v. Reconnecting...", err)
	}
}

// -----------------------------------------------------------------------------

// connect dials with bounded fixed-delay retries.
func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error

	for attempt := 1; attempt <= s.Attempts; attempt++ {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, resp, err := dialer.DialContext(ctx, s.URL, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			s.Logger.Info("Connected to %s", s.URL)
			return conn, nil
		}

		lastErr = err
		s.Logger.Warning("Connect attempt %d/%d failed: %v", attempt, s.Attempts, err)

		if attempt == s.Attempts {
			break
		}
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, &helpers.StreamError{TrackerError: helpers.TrackerError{
		Message: fmt.Sprintf("failed to connect to %s after %d attempts", s.URL, s.Attempts),
		Cause:   lastErr,
	}}
}

// -----------------------------------------------------------------------------

func (s *Subscriber) consume(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.handleMessage(payload); err != nil {
			s.Logger.Warning("Dropping malformed message: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Subscriber) handleMessage(payload []byte) error {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return err
	}

	switch envelope.Type {
	case models.MsgSeries:
		var data models.MSeriesPayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return err
		}
		s.seedWindows(data)

	case models.MsgPoint:
		var data models.MPointPayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return err
		}
		s.applyPoint(data)
		if s.OnPoint != nil {
			s.OnPoint(data)
		}

	case models.MsgCount:
		var data models.MCountPayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return err
		}
		if s.OnCount != nil {
			s.OnCount(data)
		}

	case models.MsgPoll, models.MsgMarket:
		var record models.MAuxRecord
		if err := json.Unmarshal(envelope.Data, &record); err != nil {
			return err
		}
		s.Logger.Info("Received %s record (%d candidates)", envelope.Type, len(record.Percentages))

	case models.MsgError:
		var data models.MErrorPayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return err
		}
		s.Logger.Error("Server reported fatal aggregation error: %s", data.Message)
		if s.OnError != nil {
			s.OnError(data)
		}

	default:
		return fmt.Errorf("unknown message type %q", envelope.Type)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (s *Subscriber) seedWindows(data models.MSeriesPayload) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.Granularities {
		series := data.SeriesByGranularity[g.String()]
		for _, entry := range series {
			w := s.window(g, entry.Name)
			w.Seed(entry.Points, now)
		}
	}
}

// -----------------------------------------------------------------------------

// applyPoint upserts the last-bucket totals: the point's timestamp is the
// bucket start for its granularity, so a repeated tick for the same bucket
// overwrites the previous value instead of summing.
func (s *Subscriber) applyPoint(data models.MPointPayload) {
	now := time.Now().UTC()
	ts := time.Unix(data.Timestamp, 0).UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.Granularities {
		totals := data.Totals[g.String()]
		bucketStart := ts.Truncate(g.Unit())
		for name, value := range totals {
			w := s.window(g, name)
			w.Upsert(models.MSeriesPoint{Date: bucketStart, Value: value}, now)
		}
	}
}

// -----------------------------------------------------------------------------

// window returns the rolling window for (g, name), creating it on first use.
// Callers hold s.mu.
func (s *Subscriber) window(g models.MGranularity, name string) *RollingWindow {
	byName := s.windows[g.String()]
	w, ok := byName[name]
	if !ok {
		w = NewRollingWindow(g.Lookback())
		byName[name] = w
	}
	return w
}

// -----------------------------------------------------------------------------

// Window returns a copy of the buffered points for (granularity, candidate).
func (s *Subscriber) Window(g models.MGranularity, name string) []models.MSeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.windows[g.String()][name]; ok {
		return w.Points()
	}
	return nil
}
