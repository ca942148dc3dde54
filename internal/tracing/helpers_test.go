package tracing

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/clock"
	"github.com/GriffinCanCode/apmtrace/internal/metrics"
)

const (
	testKey  = "d67afc830dab717fd163bfcb0b8b88423e9a1a3b"
	testCPID = "33#44"
	peerCPID = "55#66"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	tracer   *Tracer
	recorder *metrics.Recorder
	clock    *clock.Manual
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, mutate func(*Config), opts ...Option) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.AppName = "test-app"
	if mutate != nil {
		mutate(&cfg)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		recorder: &metrics.Recorder{},
		clock:    clock.NewManual(epoch),
		logs:     logs,
	}
	base := []Option{
		WithAggregator(h.recorder),
		WithClock(h.clock),
		WithLogger(zap.New(core)),
	}
	h.tracer = New(cfg, append(base, opts...)...)
	return h
}

func withCAT(cfg *Config) {
	cfg.CrossApp = CrossAppConfig{
		Enabled:        true,
		CrossProcessID: testCPID,
		EncodingKey:    testKey,
	}
}

func strict(cfg *Config) {
	cfg.StrictIntegrity = true
}

// lastBatchNames returns the names of the most recently recorded batch.
func (h *harness) lastBatchNames() []string {
	batches := h.recorder.Batches()
	if len(batches) == 0 {
		return nil
	}
	var names []string
	for _, obs := range batches[len(batches)-1] {
		names = append(names, obs.Name)
	}
	return names
}

type traceCollector struct {
	traces []*Trace
}

func (c *traceCollector) TransactionFinished(tr *Trace) {
	c.traces = append(c.traces, tr)
}

type sqlCollector struct {
	samples []SQLSample
}

func (c *sqlCollector) NoticeSQL(s SQLSample) {
	c.samples = append(c.samples, s)
}
