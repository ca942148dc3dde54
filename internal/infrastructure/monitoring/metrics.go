package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the tracer's self-observability metrics
type Metrics struct {
	SegmentsFinished *prometheus.CounterVec
	SegmentDuration  *prometheus.HistogramVec
	IntegrityErrors  *prometheus.CounterVec
	HookFailures     *prometheus.CounterVec
	CATHeaders       *prometheus.CounterVec

	TransactionsActive prometheus.Gauge
	TransactionsTotal  *prometheus.CounterVec

	ExplainPlans *prometheus.CounterVec
}

// NewMetrics registers the tracer metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SegmentsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apm_segments_finished_total",
				Help: "Total number of finished segments",
			},
			[]string{"kind", "forced"},
		),
		SegmentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apm_segment_duration_seconds",
				Help:    "Segment duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		IntegrityErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apm_integrity_errors_total",
				Help: "Instrumentation bugs absorbed by the tracer",
			},
			[]string{"reason"},
		),
		HookFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apm_hook_failures_total",
				Help: "Header hook failures swallowed by the tracer",
			},
			[]string{"hook"},
		),
		CATHeaders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apm_cat_headers_total",
				Help: "Cross-application tracing headers processed",
			},
			[]string{"direction", "result"},
		),
		TransactionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "apm_transactions_active",
				Help: "Number of transactions in progress",
			},
		),
		TransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apm_transactions_total",
				Help: "Total number of ended transactions",
			},
			[]string{"type"},
		),
		ExplainPlans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apm_explain_plans_total",
				Help: "Explain plan attempts by outcome",
			},
			[]string{"result"},
		),
	}
}

// RecordSegment records a finished segment
func (m *Metrics) RecordSegment(kind string, forced bool, duration time.Duration) {
	if m == nil {
		return
	}
	f := "false"
	if forced {
		f = "true"
	}
	m.SegmentsFinished.WithLabelValues(kind, f).Inc()
	m.SegmentDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordIntegrityError records an absorbed instrumentation bug
func (m *Metrics) RecordIntegrityError(reason string) {
	if m == nil {
		return
	}
	m.IntegrityErrors.WithLabelValues(reason).Inc()
}

// RecordHookFailure records a swallowed failure inside a header hook
func (m *Metrics) RecordHookFailure(hook string) {
	if m == nil {
		return
	}
	m.HookFailures.WithLabelValues(hook).Inc()
}

// RecordCATHeader records the outcome of encoding or decoding a CAT header
func (m *Metrics) RecordCATHeader(direction, result string) {
	if m == nil {
		return
	}
	m.CATHeaders.WithLabelValues(direction, result).Inc()
}

// RecordExplain records an explain plan attempt
func (m *Metrics) RecordExplain(result string) {
	if m == nil {
		return
	}
	m.ExplainPlans.WithLabelValues(result).Inc()
}

// TransactionStarted increments the active transaction gauge
func (m *Metrics) TransactionStarted() {
	if m == nil {
		return
	}
	m.TransactionsActive.Inc()
}

// TransactionEnded decrements the active gauge and counts the transaction
func (m *Metrics) TransactionEnded(web bool) {
	if m == nil {
		return
	}
	m.TransactionsActive.Dec()
	if web {
		m.TransactionsTotal.WithLabelValues("web").Inc()
	} else {
		m.TransactionsTotal.WithLabelValues("other").Inc()
	}
}
