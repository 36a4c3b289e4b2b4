// Package api provides the REST API server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/roev/internal/common"
	"github.com/user/roev/internal/facts"
	"github.com/user/roev/internal/screen"
	"github.com/user/roev/internal/storage"
	"github.com/user/roev/pkg/config"
)

// HistoryReader serves stored runs. *storage.Repository implements it.
type HistoryReader interface {
	LatestSnapshot(ctx context.Context, symbol string) (*storage.Snapshot, error)
	ListSnapshots(ctx context.Context, symbol string, limit int) ([]storage.Snapshot, error)
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
	GetRun(ctx context.Context, id string) (*storage.Run, error)
}

// Server represents the API server.
type Server struct {
	router    *gin.Engine
	runner    *screen.Runner
	history   HistoryReader
	csvParser *facts.CSVParser
	config    *config.Config
	logger    *common.Logger
}

// NewServer creates a new API server. history may be nil, in which case
// the history routes answer 404.
func NewServer(runner *screen.Runner, history HistoryReader, cfg *config.Config, logger *common.Logger) *Server {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Server{
		runner:    runner,
		history:   history,
		csvParser: facts.NewCSVParser(),
		config:    cfg,
		logger:    logger,
	}

	s.setupRouter()
	return s
}

// setupRouter sets up the Gin router with all routes.
func (s *Server) setupRouter() {
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))

	// Enable CORS
	r.Use(corsMiddleware())

	// Uploads are small flat files.
	r.MaxMultipartMemory = 8 << 20

	// API v1 routes
	api := r.Group("/api/v1")
	{
		// Health check
		api.GET("/health", s.handleHealth)

		// Metrics
		api.GET("/metrics/:symbol", s.handleGetMetrics)
		api.POST("/metrics", s.handleComputeMetrics)

		// Batch screening
		api.POST("/screen", s.handleScreen)

		// CSV upload
		api.POST("/upload", s.handleUpload)
		api.GET("/columns", s.handleGetColumns)

		// History
		api.GET("/history/:symbol", s.handleGetHistory)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
	}

	s.router = r
}

// Router returns the Gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// HTTPServer wraps the router with the configured timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
}

// corsMiddleware adds CORS headers.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs each request once it completes.
func requestLogger(logger *common.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	}
}
