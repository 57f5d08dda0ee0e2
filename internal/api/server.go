// Package api exposes the read API over the unified store plus an ETL
// trigger endpoint.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/observability"
	"crypto-market-etl/internal/pipeline"
	"crypto-market-etl/internal/storage"
)

// Default pagination limits, overridable via Options.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Runner triggers an ETL run. Satisfied by pipeline.Runner.
type Runner interface {
	RunAll(ctx context.Context) *pipeline.Summary
}

// Server serves the HTTP API.
type Server struct {
	engine      *gin.Engine
	checkpoints storage.CheckpointStore
	unified     storage.UnifiedStore
	raw         storage.RawStore
	runner      Runner
	ping        func(ctx context.Context) error
	logger      *log.Logger

	defaultPageSize int
	maxPageSize     int
}

// Options for creating Server.
type Options struct {
	// Required
	CheckpointStore storage.CheckpointStore
	UnifiedStore    storage.UnifiedStore
	RawStore        storage.RawStore

	// Optional
	Runner          Runner                          // nil disables POST /api/v1/etl/run
	Ping            func(ctx context.Context) error // nil skips the backing-store health probe
	Logger          *log.Logger                     // nil uses log.Default()
	DefaultPageSize int
	MaxPageSize     int
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:          engine,
		checkpoints:     opts.CheckpointStore,
		unified:         opts.UnifiedStore,
		raw:             opts.RawStore,
		runner:          opts.Runner,
		ping:            opts.Ping,
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/data", s.getData)
		v1.GET("/health", s.getHealth)
		v1.GET("/stats", s.getStats)
		v1.POST("/etl/run", s.triggerRun)
	}
	engine.GET("/metrics", gin.WrapH(observability.Handler()))

	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server on addr, blocking until it exits.
func (s *Server) Run(addr string) error {
	s.logger.Printf("[api] listening on %s", addr)
	return s.engine.Run(addr)
}

// recordView is the API shape of a unified record.
type recordView struct {
	ID         int64     `json:"id"`
	CoinID     string    `json:"coin_id"`
	Name       string    `json:"name"`
	Symbol     string    `json:"symbol"`
	PriceUSD   *string   `json:"price_usd"`
	MarketCap  *string   `json:"market_cap"`
	Volume24h  *string   `json:"volume_24h"`
	Source     string    `json:"source"`
	IngestedAt time.Time `json:"ingested_at"`
}

func toRecordView(rec *domain.UnifiedRecord) recordView {
	view := recordView{
		ID:         rec.ID,
		CoinID:     rec.CoinID,
		Name:       rec.Name,
		Symbol:     rec.Symbol,
		Source:     rec.Source.String(),
		IngestedAt: rec.IngestedAt,
	}
	if rec.PriceUSD.Valid {
		v := rec.PriceUSD.Decimal.String()
		view.PriceUSD = &v
	}
	if rec.MarketCap.Valid {
		v := rec.MarketCap.Decimal.String()
		view.MarketCap = &v
	}
	if rec.Volume24h.Valid {
		v := rec.Volume24h.Decimal.String()
		view.Volume24h = &v
	}
	return view
}

// getData returns one page of unified records, newest first.
func (s *Server) getData(c *gin.Context) {
	requestID := uuid.NewString()
	start := time.Now()

	filter := storage.QueryFilter{
		CoinID:   c.Query("coin_id"),
		Page:     1,
		PageSize: s.defaultPageSize,
	}

	if src := c.Query("source"); src != "" {
		filter.Source = domain.Source(src)
		if !filter.Source.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"request_id": requestID,
				"error":      "unknown source: " + src,
			})
			return
		}
	}
	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"request_id": requestID,
				"error":      "page must be a positive integer",
			})
			return
		}
		filter.Page = page
	}
	if sizeStr := c.Query("page_size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil || size < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"request_id": requestID,
				"error":      "page_size must be a positive integer",
			})
			return
		}
		if size > s.maxPageSize {
			size = s.maxPageSize
		}
		filter.PageSize = size
	}

	records, total, err := s.unified.Query(c.Request.Context(), filter)
	latency := time.Since(start)

	if err != nil {
		s.logger.Printf("[api] %s: query failed: %v", requestID, err)
		observeDataRequest(http.StatusInternalServerError, latency)
		c.JSON(http.StatusInternalServerError, gin.H{
			"request_id": requestID,
			"error":      "query failed",
		})
		return
	}
	observeDataRequest(http.StatusOK, latency)

	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, toRecordView(rec))
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": requestID,
		"latency_ms": latency.Milliseconds(),
		"page":       filter.Page,
		"page_size":  filter.PageSize,
		"total":      total,
		"data":       views,
	})
}

// observeDataRequest records the data-endpoint latency under the status
// code actually returned.
func observeDataRequest(code int, latency time.Duration) {
	observability.DefaultMetrics.APIRequestDuration.
		WithLabelValues("/api/v1/data", strconv.Itoa(code)).
		Observe(latency.Seconds())
}

// getHealth reports store reachability and per-source run state.
func (s *Server) getHealth(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	dbStatus := "ok"
	if s.ping != nil {
		if err := s.ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}
	}

	sources := gin.H{}
	checkpoints, err := s.checkpoints.List(ctx)
	if err != nil {
		status = http.StatusServiceUnavailable
		sources["error"] = err.Error()
	} else {
		for _, cp := range checkpoints {
			sources[cp.Source.String()] = gin.H{
				"status":            cp.Status,
				"records_processed": cp.RecordsProcessed,
			}
		}
	}

	healthy := "healthy"
	if status != http.StatusOK {
		healthy = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":   healthy,
		"database": dbStatus,
		"sources":  sources,
	})
}

// getStats returns per-source ingestion totals.
func (s *Server) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	checkpoints, err := s.checkpoints.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list checkpoints failed"})
		return
	}

	stats := make([]gin.H, 0, len(checkpoints))
	for _, cp := range checkpoints {
		entry := gin.H{
			"source":              cp.Source,
			"status":              cp.Status,
			"last_run_started_at": cp.LastRunStartedAt,
			"records_processed":   cp.RecordsProcessed,
			"duration_seconds":    cp.DurationSeconds,
		}
		if cp.LastRunFinishedAt != nil {
			entry["last_run_finished_at"] = cp.LastRunFinishedAt
		}
		if cp.ErrorMessage != "" {
			entry["error_message"] = cp.ErrorMessage
		}
		if archived, err := s.raw.CountBySource(ctx, cp.Source); err == nil {
			entry["raw_archived"] = archived
		}
		stats = append(stats, entry)
	}

	c.JSON(http.StatusOK, gin.H{"sources": stats})
}

// triggerRun starts an ETL run in the background and returns immediately.
// Sources already running are skipped by the checkpoint claim, so repeated
// triggers never stack runs.
func (s *Server) triggerRun(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "etl trigger not configured"})
		return
	}

	requestID := uuid.NewString()
	go func() {
		summary := s.runner.RunAll(context.Background())
		s.logger.Printf("[api] %s: triggered run finished: %d succeeded, %d failed, %d skipped",
			requestID, summary.Succeeded, summary.Failed, summary.Skipped)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"request_id": requestID,
		"status":     "started",
	})
}
