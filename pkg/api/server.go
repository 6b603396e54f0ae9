// Package api serves the ADAA HTTP API: dataset upload, job status and
// cancellation, questions about finished analyses, chart payloads, the live
// event stream (SSE and WebSocket), health and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/adaa/pkg/agent/query"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/database"
	"github.com/codeready-toolchain/adaa/pkg/events"
	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/queue"
	"github.com/codeready-toolchain/adaa/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server

	dbClient       *database.Client
	jobService     *services.JobService
	workerPool     *queue.WorkerPool
	connManager    *events.ConnectionManager
	blobs          blob.Store
	tokens         *TokenManager
	queryAgent     *query.Agent
	warningService *services.SystemWarningsService
	eventPublisher events.Publisher
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
}

// NewServer creates the API server and registers its routes.
// workerPool and connManager may be nil; the endpoints needing them then
// degrade (health omits the pool, streams return 503).
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	jobService *services.JobService,
	workerPool *queue.WorkerPool,
	connManager *events.ConnectionManager,
	blobs blob.Store,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:         cfg,
		engine:      gin.New(),
		dbClient:    dbClient,
		jobService:  jobService,
		workerPool:  workerPool,
		connManager: connManager,
		blobs:       blobs,
		tokens:      NewTokenManager(cfg.Auth),
		gatherer:    prometheus.DefaultGatherer,
	}
	s.setupRoutes()
	return s
}

// SetQueryAgent enables the question endpoint.
func (s *Server) SetQueryAgent(a *query.Agent) {
	s.queryAgent = a
}

// SetWarningsService sets the system warnings reported on /health.
func (s *Server) SetWarningsService(svc *services.SystemWarningsService) {
	s.warningService = svc
}

// SetEventPublisher sets the publisher for events of single-stage runs
// started through the API.
func (s *Server) SetEventPublisher(p events.Publisher) {
	s.eventPublisher = p
}

// SetMetrics sets the collectors and the gatherer served on /metrics.
func (s *Server) SetMetrics(m *metrics.Metrics, g prometheus.Gatherer) {
	s.metrics = m
	if g != nil {
		s.gatherer = g
	}
}

func (s *Server) setupRoutes() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLogger())
	s.engine.Use(securityHeaders())
	s.engine.Use(cors.New(s.corsConfig()))

	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/metrics", func(c *gin.Context) {
		promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
	})

	v1 := s.engine.Group("/api/v1")
	v1.GET("/agents", s.listAgentsHandler)

	authed := v1.Group("", s.requireAuth())
	authed.POST("/analyses", s.submitAnalysisHandler)
	authed.GET("/analyses", s.listAnalysesHandler)
	authed.GET("/analyses/:task_id", s.getAnalysisHandler)
	authed.POST("/analyses/:task_id/cancel", s.cancelAnalysisHandler)
	authed.POST("/analyses/:task_id/query", s.queryHandler)
	authed.POST("/analyses/:task_id/agents/:stage", s.runStageHandler)
	authed.GET("/analyses/:task_id/events", s.eventStreamHandler)
	authed.GET("/charts/:task_id/:chart_id", s.chartHandler)
	authed.GET("/ws", s.wsHandler)
	authed.GET("/system/warnings", s.systemWarningsHandler)
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(s.cfg.Server.CORSOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.Server.CORSOrigins
	}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Last-Event-ID"}
	cfg.AllowWebSockets = true
	return cfg
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on addr and blocks until the server stops.
// It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Open event streams end when their request context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return s.httpServer.Close()
	}
	return err
}
