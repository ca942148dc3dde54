package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/apmtrace/internal/api/http"
	"github.com/GriffinCanCode/apmtrace/internal/api/middleware"
	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/config"
	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/logging"
	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apmtrace/internal/integrations/httpclient"
	"github.com/GriffinCanCode/apmtrace/internal/integrations/otelbridge"
	"github.com/GriffinCanCode/apmtrace/internal/integrations/pgxtrace"
	"github.com/GriffinCanCode/apmtrace/internal/integrations/redistrace"
	"github.com/GriffinCanCode/apmtrace/internal/metrics"
	"github.com/GriffinCanCode/apmtrace/internal/sqltrace"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
	tracingmw "github.com/GriffinCanCode/apmtrace/internal/tracing/middleware"
)

const traceBufferSize = 100

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	tracer  *tracing.Tracer
	table   *metrics.Table
	sampler *sqltrace.Sampler
	logger  *logging.Logger
	config  *config.Config

	redis    *redis.Client
	postgres *pgxpool.Pool
	peer     *httpclient.Client
	provider *sdktrace.TracerProvider
	http     *http.Server
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing apmtrace demo server",
		zap.String("app_name", cfg.App.Name),
		zap.String("port", cfg.Server.Port),
		zap.Bool("cat_enabled", cfg.CrossApp.Enabled),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	monitor := monitoring.NewMetrics(reg)

	table := metrics.NewTable()
	reg.MustRegister(monitoring.NewTableCollector(table, cfg.Metrics.Namespace))

	sampler := sqltrace.New(cfg.SQLConfig(),
		sqltrace.WithLogger(logger.Logger),
		sqltrace.WithMonitor(monitor),
	)

	s := &Server{
		table:   table,
		sampler: sampler,
		logger:  logger,
		config:  cfg,
	}

	traces := apihttp.NewTraceBuffer(traceBufferSize)
	samplers := tracing.TraceSamplers{traces}
	if cfg.OTel.Enabled {
		tp, err := newTracerProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up OpenTelemetry export: %w", err)
		}
		s.provider = tp
		samplers = append(samplers, otelbridge.New(tp))
		logger.Info("OpenTelemetry export enabled", zap.String("endpoint", cfg.OTel.Endpoint))
	}

	s.tracer = tracing.New(cfg.TracerConfig(),
		tracing.WithAggregator(table),
		tracing.WithLogger(logger.Logger),
		tracing.WithSQLSampler(sampler),
		tracing.WithTraceSampler(samplers),
		tracing.WithMonitor(monitor),
	)

	if err := s.connectBackends(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Agent endpoints are not traced
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	apihttp.NewHandlers(s.tracer, table, sampler, traces, nil, logger.Logger).Register(router)

	traced := router.Group("/demo", tracingmw.Gin(s.tracer))
	traced.GET("/items/:id", s.getItem)
	traced.GET("/ping", s.ping)

	s.router = router
	logger.Info("Server initialized successfully")
	return s, nil
}

func newTracerProvider(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTel.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.App.Name),
	))
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	), nil
}

// connectBackends opens the optional instrumented clients.
func (s *Server) connectBackends(ctx context.Context) error {
	b := s.config.Backends

	if b.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: b.RedisAddr})
		redistrace.Instrument(s.redis)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn("Redis not reachable", zap.String("addr", b.RedisAddr), zap.Error(err))
		} else {
			s.logger.Info("Connected to Redis", zap.String("addr", b.RedisAddr))
		}
	}

	if b.PostgresDSN != "" {
		poolCfg, err := pgxpool.ParseConfig(b.PostgresDSN)
		if err != nil {
			return fmt.Errorf("invalid postgres dsn: %w", err)
		}
		tracer := &pgxtrace.Tracer{}
		poolCfg.ConnConfig.Tracer = tracer
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create postgres pool: %w", err)
		}
		tracer.Explain = pool
		s.postgres = pool
		s.logger.Info("Postgres pool created", zap.String("host", poolCfg.ConnConfig.Host))
	}

	if b.PeerURL != "" {
		s.peer = httpclient.NewClient(httpclient.DefaultConfig())
		s.logger.Info("Peer service configured", zap.String("url", b.PeerURL))
	}
	return nil
}

// getItem exercises every instrumented client configured.
func (s *Server) getItem(c *gin.Context) {
	ctx := c.Request.Context()
	txn := tracingmw.Transaction(c)
	id := c.Param("id")
	item := gin.H{"id": id}

	lookup := txn.StartSegment("lookupItem")

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, "item:"+id).Result()
		switch {
		case err == nil:
			item["cached"] = cached
		case !errors.Is(err, redis.Nil):
			s.logger.Debug("Redis lookup failed", zap.Error(err))
		}
	}

	if s.postgres != nil {
		if n, err := strconv.Atoi(id); err == nil {
			var name string
			err := s.postgres.QueryRow(ctx, "SELECT name FROM items WHERE id = $1", n).Scan(&name)
			switch {
			case err == nil:
				item["name"] = name
			case errors.Is(err, pgx.ErrNoRows):
				lookup.Finish()
				c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
				return
			default:
				s.logger.Debug("Postgres lookup failed", zap.Error(err))
			}
		}
	}

	if s.peer != nil {
		resp, err := s.peer.Do(ctx, http.MethodGet, s.config.Backends.PeerURL+"/demo/ping")
		if err != nil {
			s.logger.Debug("Peer call failed", zap.Error(err))
		} else {
			item["peer_status"] = resp.StatusCode()
		}
	}

	lookup.Finish()
	c.JSON(http.StatusOK, item)
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pong": true})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Tracer returns the server's tracer.
func (s *Server) Tracer() *tracing.Tracer {
	return s.tracer
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Close releases backend connections and flushes exported spans.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	if s.postgres != nil {
		s.postgres.Close()
	}
	if s.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush spans: %w", err))
		}
	}

	_ = s.logger.Sync()
	return errors.Join(errs...)
}
