package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/consumer"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// Terminal subscriber. Connects to a tracker, maintains rolling mention
// windows and prints updates as they arrive.
func main() {

	// Parse command line flags
	url := flag.String("url", "ws://localhost:8080/ws", "tracker websocket endpoint")
	attempts := flag.Int("attempts", 5, "reconnect attempts before giving up")
	delay := flag.Int("delay", 3, "seconds between reconnect attempts")
	flag.Parse()

	appLogger := logger.NewLogger(nil, "Client")

	granularities := []models.MGranularity{models.GranularityMinute, models.GranularityHour}

	sub := consumer.NewSubscriber(
		*url,
		*attempts,
		time.Duration(*delay)*time.Second,
		granularities,
		appLogger,
	)

	sub.OnPoint = func(p models.MPointPayload) {
		for gran, totals := range p.Totals {
			for name, count := range totals {
				appLogger.Debug("point %s %s=%d", gran, name, count)
			}
		}
	}
	sub.OnCount = func(c models.MCountPayload) {
		appLogger.Info("Subscribers online: %d", c.Clients)
	}
	sub.OnError = func(e models.MErrorPayload) {
		appLogger.Warning("Tracker reported: %s", e.Message)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		appLogger.Info("Shutting down...")
		cancel()
	}()

	if err := sub.Run(ctx); err != nil {
		appLogger.Error("Subscriber stopped: %v", err)
		os.Exit(1)
	}
}
