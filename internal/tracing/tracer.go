package tracing

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/clock"
	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apmtrace/internal/metrics"
	"github.com/GriffinCanCode/apmtrace/internal/shared/id"
	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

// Tracer creates transactions and holds the collaborators they report to.
// A Tracer is safe for concurrent use.
type Tracer struct {
	cfg     Config
	codec   *cat.Codec
	trusted map[string]struct{}

	aggregator   metrics.Aggregator
	clock        clock.Clock
	logger       *zap.Logger
	sqlSampler   SQLSampler
	traceSampler TraceSampler
	monitor      *monitoring.Metrics
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithAggregator sets the metric sink. Nil means discard.
func WithAggregator(a metrics.Aggregator) Option {
	return func(t *Tracer) { t.aggregator = metrics.OrDiscard(a) }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(t *Tracer) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithSQLSampler receives SQL statements of finished datastore segments.
func WithSQLSampler(s SQLSampler) Option {
	return func(t *Tracer) { t.sqlSampler = s }
}

// WithTraceSampler receives a Trace for every ended transaction.
func WithTraceSampler(s TraceSampler) Option {
	return func(t *Tracer) { t.traceSampler = s }
}

// WithMonitor reports tracer health to Prometheus.
func WithMonitor(m *monitoring.Metrics) Option {
	return func(t *Tracer) { t.monitor = m }
}

// New creates a tracer.
func New(cfg Config, opts ...Option) *Tracer {
	t := &Tracer{
		cfg:        cfg,
		codec:      cat.NewCodec(cfg.CrossApp.EncodingKey),
		trusted:    make(map[string]struct{}),
		aggregator: metrics.Discard,
		clock:      clock.System{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, account := range cfg.CrossApp.TrustedAccountIDs {
		t.trusted[account] = struct{}{}
	}
	if own, ok := cat.AccountID(cfg.CrossApp.CrossProcessID); ok {
		t.trusted[own] = struct{}{}
	}

	if cfg.CrossApp.Enabled && !t.catEnabled() {
		t.logger.Warn("cross application tracing disabled: cross process id or encoding key invalid",
			zap.String("cross_process_id", cfg.CrossApp.CrossProcessID))
	}
	return t
}

// Config returns the tracer configuration.
func (t *Tracer) Config() Config {
	return t.cfg
}

// Codec returns the CAT codec.
func (t *Tracer) Codec() *cat.Codec {
	return t.codec
}

// StartTransaction begins a transaction. web fixes its classification for
// its whole life.
func (t *Tracer) StartTransaction(name string, web bool) *Transaction {
	guid := id.NewTransactionGUID()
	txn := &Transaction{
		tracer: t,
		guid:   guid,
		name:   name,
		isWeb:  web,
		start:  t.clock.Now(),
		log:    t.logger.With(zap.String("txn_guid", guid.String())),
	}
	t.monitor.TransactionStarted()
	return txn
}

func (t *Tracer) catEnabled() bool {
	return t.cfg.CrossApp.Enabled &&
		t.codec.Enabled() &&
		cat.ValidCrossProcessID(t.cfg.CrossApp.CrossProcessID)
}

func (t *Tracer) isTrusted(account string) bool {
	_, ok := t.trusted[account]
	return ok
}
