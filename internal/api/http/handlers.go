package http

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/clock"
	"github.com/GriffinCanCode/apmtrace/internal/metrics"
	"github.com/GriffinCanCode/apmtrace/internal/sqltrace"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

// Handlers serves the debug API.
type Handlers struct {
	tracer  *tracing.Tracer
	table   *metrics.Table
	sampler *sqltrace.Sampler
	traces  *TraceBuffer
	clock   clock.Clock
	logger  *zap.Logger
	started time.Time

	mu          sync.Mutex
	windowStart time.Time
}

// NewHandlers creates the debug handlers. sampler and traces may be nil.
func NewHandlers(tracer *tracing.Tracer, table *metrics.Table, sampler *sqltrace.Sampler, traces *TraceBuffer, clk clock.Clock, logger *zap.Logger) *Handlers {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := clk.Now()
	return &Handlers{
		tracer:      tracer,
		table:       table,
		sampler:     sampler,
		traces:      traces,
		clock:       clk,
		logger:      logger,
		started:     now,
		windowStart: now,
	}
}

// Register mounts the routes on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	debug := r.Group("/debug")
	debug.GET("/metrics", h.Metrics)
	debug.POST("/metrics/harvest", h.Harvest)
	debug.GET("/sql", h.SlowSQL)
	debug.GET("/traces", h.Traces)
	debug.POST("/cat/decode", h.DecodeCAT)
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"app_name": h.tracer.Config().AppName,
		"cat":      h.tracer.Codec().Enabled(),
	})
}

// Metrics returns the current metric table without resetting it.
func (h *Handlers) Metrics(c *gin.Context) {
	snapshot := h.table.Snapshot()

	h.mu.Lock()
	start := h.windowStart
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"summary": h.summary(),
		"payload": metrics.NewPayload(h.tracer.Config().AppName, start, h.clock.Now(), snapshot),
	})
}

// Harvest drains the metric table and returns the gzip compressed payload.
func (h *Handlers) Harvest(c *gin.Context) {
	now := h.clock.Now()

	h.mu.Lock()
	start := h.windowStart
	h.windowStart = now
	snapshot := h.table.Harvest()
	h.mu.Unlock()

	body, err := metrics.EncodePayload(metrics.NewPayload(h.tracer.Config().AppName, start, now, snapshot))
	if err != nil {
		h.logger.Error("Failed to encode harvest payload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Harvested metrics", zap.Int("metrics", len(snapshot)))
	c.Header("Content-Encoding", "gzip")
	c.Header("X-Metric-Count", strconv.Itoa(len(snapshot)))
	c.Data(http.StatusOK, "application/json", body)
}

// SlowSQL lists the slow SQL samples collected so far.
func (h *Handlers) SlowSQL(c *gin.Context) {
	views := []SlowSQLView{}
	if h.sampler != nil {
		for _, s := range h.sampler.Snapshot() {
			views = append(views, newSlowSQLView(s))
		}
	}
	c.JSON(http.StatusOK, gin.H{"samples": views})
}

// Traces lists recent transaction traces, newest first. The optional
// "limit" query parameter caps the result.
func (h *Handlers) Traces(c *gin.Context) {
	var recent []*tracing.Trace
	if h.traces != nil {
		recent = h.traces.Recent()
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if limit < len(recent) {
			recent = recent[:limit]
		}
	}

	views := make([]TraceView, 0, len(recent))
	for _, tr := range recent {
		views = append(views, newTraceView(tr))
	}
	c.JSON(http.StatusOK, gin.H{"traces": views})
}

// DecodeRequest is the body of DecodeCAT.
type DecodeRequest struct {
	Header string `json:"header" binding:"required"`
	Value  string `json:"value" binding:"required"`
}

// DecodeCAT decodes a CAT header with the agent's encoding key.
func (h *Handlers) DecodeCAT(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	codec := h.tracer.Codec()
	var (
		decoded any
		err     error
	)
	switch http.CanonicalHeaderKey(req.Header) {
	case http.CanonicalHeaderKey(cat.HeaderID):
		decoded, err = codec.DecodeID(req.Value)
	case http.CanonicalHeaderKey(cat.HeaderTransaction):
		decoded, err = codec.DecodeTxnHeader(req.Value)
	case http.CanonicalHeaderKey(cat.HeaderAppData):
		decoded, err = codec.DecodeAppData(req.Value)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown CAT header " + req.Header})
		return
	}

	switch {
	case errors.Is(err, cat.ErrNoEncodingKey):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"header": req.Header, "decoded": decoded})
	}
}

func (h *Handlers) summary() MetricsSummary {
	s := MetricsSummary{UptimeSeconds: h.clock.Now().Sub(h.started).Seconds()}
	if web, ok := h.table.Get("WebTransaction", ""); ok {
		s.WebTransactions = web.CallCount
		s.AverageWebMs = ms(web.Mean())
	}
	if other, ok := h.table.Get("OtherTransaction/all", ""); ok {
		s.OtherTransactions = other.CallCount
	}
	if ds, ok := h.table.Get("Datastore/all", ""); ok {
		s.DatastoreCalls = ds.CallCount
	}
	if ext, ok := h.table.Get("External/all", ""); ok {
		s.ExternalCalls = ext.CallCount
	}
	return s
}
