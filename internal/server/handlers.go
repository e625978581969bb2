package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rfushimi/q/internal/commands"
	"github.com/rfushimi/q/internal/engine"
	"github.com/rfushimi/q/internal/llm"
	"github.com/rfushimi/q/pkg/telemetry"
)

// QueryRequest is the request body for the /query endpoint
type QueryRequest struct {
	Prompt  string `json:"prompt" binding:"required"`
	NoCache bool   `json:"no_cache"`
}

// QueryResponse is the response body for the /query endpoint
type QueryResponse struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
	Model  string `json:"model"`
	Cached bool   `json:"cached"`
}

// ErrorResponse is the response body for errors
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// handleQuery handles POST /query requests
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request: " + err.Error(),
		})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request: prompt is empty"})
		return
	}

	result, err := s.deps.Engine.Run(c.Request.Context(), req.Prompt, engine.QueryOptions{NoCache: req.NoCache})
	if err != nil {
		status := statusFor(err)
		s.logger.Error().Err(err).Int("status", status).Msg("Query failed")
		c.JSON(status, ErrorResponse{
			Error: "Failed to process query: " + err.Error(),
			Kind:  llm.KindOf(err).String(),
		})
		return
	}

	c.JSON(http.StatusOK, QueryResponse{
		ID:     result.ID,
		Answer: result.Answer,
		Model:  result.Model,
		Cached: result.Cached,
	})
}

// statusFor maps a query failure to an HTTP status
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}

	switch llm.KindOf(err) {
	case llm.KindInvalidKey:
		return http.StatusUnauthorized
	case llm.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// SuggestRequest is the request body for the /suggest endpoint
type SuggestRequest struct {
	Query string `json:"query" binding:"required"`
}

// SuggestResponse is the response body for the /suggest endpoint
type SuggestResponse struct {
	Suggestions []commands.Command `json:"suggestions"`
}

// handleSuggest handles POST /suggest requests
func (s *Server) handleSuggest(c *gin.Context) {
	var req SuggestRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request: " + err.Error(),
		})
		return
	}

	cmds, err := s.deps.Matcher.Suggest(req.Query)
	if errors.Is(err, commands.ErrNoMatch) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuggestResponse{Suggestions: cmds})
}

// HealthResponse is the response body for /health
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// handleHealth handles GET /health requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Provider: s.deps.Provider,
		Model:    s.deps.Engine.ModelName(),
	})
}

// InfoResponse is the response body for /info
type InfoResponse struct {
	Version  string `json:"version"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Cache    string `json:"cache"`
	Uptime   string `json:"uptime"`
}

// handleInfo handles GET /info requests
func (s *Server) handleInfo(c *gin.Context) {
	backend := "disabled"
	if s.deps.Store != nil {
		if stats, err := s.deps.Store.Stats(); err == nil {
			backend = stats.Backend
		}
	}

	c.JSON(http.StatusOK, InfoResponse{
		Version:  s.deps.Version,
		Provider: s.deps.Provider,
		Model:    s.deps.Engine.ModelName(),
		Cache:    backend,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}

// MetricsResponse is the response body for /metrics
type MetricsResponse struct {
	Daily telemetry.DailyStats `json:"daily"`
	Total telemetry.TotalStats `json:"total"`
	Cache *CacheStatsResponse  `json:"cache,omitempty"`
}

// handleMetrics handles GET /metrics requests
func (s *Server) handleMetrics(c *gin.Context) {
	resp := MetricsResponse{
		Daily: s.deps.Tracker.Daily(),
		Total: s.deps.Tracker.Total(),
	}

	if stats, err := s.cacheStats(); err == nil {
		resp.Cache = stats
	}

	c.JSON(http.StatusOK, resp)
}

// CacheStatsResponse is the response body for GET /cache
type CacheStatsResponse struct {
	Backend  string  `json:"backend"`
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	TTL      string  `json:"ttl"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
}

var errCacheDisabled = errors.New("cache is disabled")

func (s *Server) cacheStats() (*CacheStatsResponse, error) {
	if s.deps.Store == nil {
		return nil, errCacheDisabled
	}

	stats, err := s.deps.Store.Stats()
	if err != nil {
		return nil, err
	}

	return &CacheStatsResponse{
		Backend:  stats.Backend,
		Entries:  stats.Entries,
		Capacity: stats.Capacity,
		TTL:      stats.TTL.String(),
		Hits:     stats.Hits,
		Misses:   stats.Misses,
		HitRate:  stats.HitRate(),
	}, nil
}

// handleCacheStats handles GET /cache requests
func (s *Server) handleCacheStats(c *gin.Context) {
	stats, err := s.cacheStats()
	if errors.Is(err, errCacheDisabled) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Cache stats failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CacheClearResponse is the response body for DELETE /cache
type CacheClearResponse struct {
	Expired bool  `json:"expired"`
	Removed int64 `json:"removed"`
}

// handleCacheClear handles DELETE /cache?expired=true|false requests
func (s *Server) handleCacheClear(c *gin.Context) {
	if s.deps.Store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: errCacheDisabled.Error()})
		return
	}

	expiredOnly := false
	if v := c.Query("expired"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request: expired must be true or false"})
			return
		}
		expiredOnly = b
	}

	var (
		removed int64
		err     error
	)
	if expiredOnly {
		removed, err = s.deps.Store.ClearExpired()
	} else {
		var n int
		if n, err = s.deps.Store.Len(); err == nil {
			removed = int64(n)
			err = s.deps.Store.Clear()
		}
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Cache clear failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info().Bool("expired_only", expiredOnly).Int64("removed", removed).Msg("Cache cleared")
	c.JSON(http.StatusOK, CacheClearResponse{Expired: expiredOnly, Removed: removed})
}
