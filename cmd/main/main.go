package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/analysis"
	"github.com/bsouthga/gop-primary-twitter-fun/src/cache"
	"github.com/bsouthga/gop-primary-twitter-fun/src/config"
	"github.com/bsouthga/gop-primary-twitter-fun/src/external"
	"github.com/bsouthga/gop-primary-twitter-fun/src/ingest"
	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/matcher"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
	"github.com/bsouthga/gop-primary-twitter-fun/src/network"
	"github.com/bsouthga/gop-primary-twitter-fun/src/server"
	"github.com/bsouthga/gop-primary-twitter-fun/src/storage"
	"github.com/bsouthga/gop-primary-twitter-fun/src/stream"
)

// How often the retention sweep deletes expired buckets and aux records.
const cleanupInterval = 10 * time.Minute

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg, cfg.Name)

	// 1. Setup Storage
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewAsyncSQLiteDB(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 2. Core components
	m := matcher.NewMatcher(cfg.Candidates)
	granularities := cfg.GranularityList()

	aggregator := analysis.NewSeriesAggregator(db, m.Names(), appLogger)

	snapshotCache := cache.NewSnapshotCache(
		db, aggregator, granularities,
		time.Duration(cfg.Cache.RefreshSeconds)*time.Second,
		appLogger,
	)

	var netManager interfaces.INetworkManager = network.NewAsyncNetworkManager(cfg.MConfig, appLogger)
	refresher := external.NewRefresher(cfg.MConfig, netManager, db, m.Names(), appLogger)

	srv := server.NewBroadcastServer(cfg.MConfig, snapshotCache, aggregator, granularities, appLogger)

	// Refreshed poll/market records reach already-connected subscribers.
	snapshotCache.Exchanger = srv

	pipeline := ingest.NewPipeline(db, m, appLogger)
	var source interfaces.IEventSource = stream.NewFirehoseSource(cfg.MConfig)

	// 3. Prime the snapshot before accepting subscribers
	if err := snapshotCache.Refresh(); err != nil {
		appLogger.Warning("Initial snapshot refresh failed: %v", err)
	}

	appLogger.Info("Initialization complete.")

	// 4. Start periodic tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrapWg := &sync.WaitGroup{}

	snapshotCache.Start(ctx, wrapWg)
	refresher.Start(ctx, wrapWg)
	srv.StartTicker(ctx, wrapWg)

	// Retention sweep
	wrapWg.Add(1)
	go func() {
		defer wrapWg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := db.CleanupOldData(); err != nil {
					appLogger.Error("Retention cleanup failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// 5. Start Server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 6. Start ingestion (Push Model)
	eventsChan := make(chan models.MRawEvent, 1024)

	if err := source.Start(ctx, eventsChan, wrapWg); err != nil {
		appLogger.Critical("Failed to start event source: %v", err)
		return
	}
	pipeline.Run(ctx, eventsChan, wrapWg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	appLogger.Info("Tracking %d candidates...", len(cfg.Candidates))

	<-quit
	appLogger.Info("Shutting down...")
	cancel()      // Signal all periodic tasks to stop
	srv.Stop()    // Hub exits, subscriber connections drain
	wrapWg.Wait() // Wait for tasks to close
}
