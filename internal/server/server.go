// Package server exposes the query engine over HTTP.
//
// The server package implements a small REST API using Gin: health and info
// endpoints, usage metrics, queries through the cached engine, command
// suggestions, and cache inspection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rfushimi/q/internal/cache"
	"github.com/rfushimi/q/internal/commands"
	"github.com/rfushimi/q/internal/engine"
	"github.com/rfushimi/q/pkg/telemetry"
	"github.com/rs/zerolog"
)

// shutdownTimeout bounds how long in-flight requests may take after Start's context ends
const shutdownTimeout = 10 * time.Second

// Deps are the components the handlers serve
type Deps struct {
	Engine   *engine.Engine
	Store    cache.Store // may be nil when caching is disabled
	Tracker  *telemetry.UsageTracker
	Matcher  *commands.Matcher
	Provider string
	Version  string
}

// Server is the HTTP server for the query engine
type Server struct {
	deps    Deps
	port    int
	logger  zerolog.Logger
	router  *gin.Engine
	started time.Time
}

// New creates a new HTTP server
func New(deps Deps, port int, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if deps.Tracker == nil {
		deps.Tracker = telemetry.NewUsageTracker(0, logger)
	}

	router := gin.New()
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	s := &Server{
		deps:    deps,
		port:    port,
		logger:  logger,
		router:  router,
		started: time.Now(),
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/info", s.handleInfo)
	s.router.GET("/metrics", s.handleMetrics)

	s.router.POST("/query", s.handleQuery)
	s.router.POST("/suggest", s.handleSuggest)

	s.router.GET("/cache", s.handleCacheStats)
	s.router.DELETE("/cache", s.handleCacheClear)
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("addr", addr).
		Str("provider", s.deps.Provider).
		Str("model", s.deps.Engine.ModelName()).
		Msg("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ginLogger creates a Gin middleware that logs using zerolog
func ginLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
