package server

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/bsouthga/gop-primary-twitter-fun/src/analysis"
	"github.com/bsouthga/gop-primary-twitter-fun/src/cache"
	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

var _ interfaces.IDataExchanger = (*BroadcastServer)(nil)

// -----------------------------------------------------------------------------
// BroadcastServer
// -----------------------------------------------------------------------------

type BroadcastServer struct {
	Config        *models.MConfig
	Logger        *logger.Logger
	Cache         *cache.SnapshotCache
	Aggregator    *analysis.SeriesAggregator
	Granularities []models.MGranularity
	engine        *gin.Engine

	// WebSocket clients, owned exclusively by the hub goroutine
	clients    map[*Client]struct{}
	broadcast  chan *models.MEnvelope // Strongly typed and Buffered Queue
	register   chan *Client
	unregister chan *Client

	// Closed on Stop; the hub exits and late (un)registrations bail out
	// instead of blocking on a dead hub.
	done     chan struct{}
	stopOnce sync.Once

	// Mirrors len(clients) for readers outside the hub goroutine
	clientCount atomic.Int64
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewBroadcastServer(
	cfg *models.MConfig,
	snapshotCache *cache.SnapshotCache,
	aggregator *analysis.SeriesAggregator,
	granularities []models.MGranularity,
	log *logger.Logger,
) *BroadcastServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &BroadcastServer{
		Config:        cfg,
		Logger:        log,
		Cache:         snapshotCache,
		Aggregator:    aggregator,
		Granularities: granularities,
		engine:        gin.Default(),
		clients:       make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		broadcast:  make(chan *models.MEnvelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *BroadcastServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/snapshot", s.getSnapshot)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *BroadcastServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

// Stop shuts the hub down. Idempotent; the message channels stay open so
// in-flight handlers and pumps never panic on send, they observe done and
// bail out.
func (s *BroadcastServer) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// -----------------------------------------------------------------------------

// SubscriberCount reports the current number of active subscribers.
func (s *BroadcastServer) SubscriberCount() int {
	return int(s.clientCount.Load())
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *BroadcastServer) getHealth(c *gin.Context) {
	snapshot := s.Cache.Current()

	c.JSON(200, gin.H{
		"status":        "ok",
		"connections":   s.SubscriberCount(),
		"snapshot_time": snapshot.SnapshotTime.Unix(),
	})
}

// -----------------------------------------------------------------------------

func (s *BroadcastServer) getConfig(c *gin.Context) {
	c.JSON(200, gin.H{
		"candidates":    s.Config.Candidates,
		"granularities": s.Config.Granularities,
	})
}

// -----------------------------------------------------------------------------

func (s *BroadcastServer) getSnapshot(c *gin.Context) {
	c.JSON(200, s.Cache.Current())
}
