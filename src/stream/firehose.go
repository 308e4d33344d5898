package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bsouthga/gop-primary-twitter-fun/src/helpers"
	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

var _ interfaces.IEventSource = (*FirehoseSource)(nil)

const (
	readLimit        = 1 << 20 // 1MB
	handshakeTimeout = 10 * time.Second
	pongWait         = 60 * time.Second
)

// -----------------------------------------------------------------------------
// FirehoseSource consumes the upstream text-event websocket stream and pushes
// raw events downstream. The stream is at-least-once, unordered and bursty;
// the source's only job is to keep a connection alive and decode frames.
// -----------------------------------------------------------------------------

type FirehoseSource struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewFirehoseSource(cfg *models.MConfig) *FirehoseSource {
	return &FirehoseSource{
		Config: cfg,
		Logger: logger.NewLogger(nil, "FirehoseSource"),
	}
}

// -----------------------------------------------------------------------------

func (s *FirehoseSource) Name() string {
	return "firehose"
}

// -----------------------------------------------------------------------------

// Start connects to the firehose and pushes decoded events to outputChan
// until ctx is cancelled. Connection loss triggers a bounded fixed-delay
// reconnect cycle; when the attempts are exhausted the source stops and
// closes the channel.
func (s *FirehoseSource) Start(ctx context.Context, outputChan chan<- models.MRawEvent, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.isRunning.Store(true)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(outputChan)
		defer s.isRunning.Store(false)

		for {
			if err := s.streamOnce(ctx, outputChan); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.Logger.Warning("Stream disconnected: %v. Reconnecting...", err)
			}

			err := helpers.RetryFixed("firehose reconnect",
				s.Config.Stream.ReconnectAttempts,
				time.Duration(s.Config.Stream.ReconnectDelaySec)*time.Second,
				func() error {
					if ctx.Err() != nil {
						return nil
					}
					return s.checkEndpoint(ctx)
				})
			if err != nil {
				s.Logger.Error("Firehose reconnect gave up: %v", err)
				return
			}

			if ctx.Err() != nil {
				return
			}
		}
	}()

	return nil
}

// -----------------------------------------------------------------------------

// checkEndpoint dials and immediately closes, verifying the endpoint is
// reachable before streamOnce commits to a full read loop.
func (s *FirehoseSource) checkEndpoint(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// -----------------------------------------------------------------------------

func (s *FirehoseSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.Config.Stream.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// -----------------------------------------------------------------------------

// streamOnce runs one connection to exhaustion: dial, decode frames, push
// events. Returns when the connection drops or ctx is cancelled.
func (s *FirehoseSource) streamOnce(ctx context.Context, outputChan chan<- models.MRawEvent) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the connection when ctx dies so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.Logger.Info("Connected to firehose %s", s.Config.Stream.URL)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var event models.MRawEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			s.Logger.Debug("Dropping undecodable frame: %v", err)
			continue
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		select {
		case outputChan <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// -----------------------------------------------------------------------------

func (s *FirehoseSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	return nil
}
