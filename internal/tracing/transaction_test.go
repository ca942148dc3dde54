package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apmtrace/internal/metrics"
	"github.com/GriffinCanCode/apmtrace/internal/shared/id"
	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

func TestTransactionClassification(t *testing.T) {
	h := newHarness(t, nil)

	web := h.tracer.StartTransaction("GET /users", true)
	other := h.tracer.StartTransaction("nightly", false)

	assert.True(t, web.IsWeb())
	assert.Equal(t, "WebTransaction/Go/GET /users", web.MetricName())
	assert.False(t, other.IsWeb())
	assert.Equal(t, "OtherTransaction/Go/nightly", other.MetricName())
	assert.True(t, id.IsValidGUID(web.GUID().String()))
	assert.NotEqual(t, web.GUID(), other.GUID())
}

func TestTransactionEndMetrics(t *testing.T) {
	h := newHarness(t, nil)
	txn := h.tracer.StartTransaction("GET /users", true)

	seg := txn.StartSegment("Custom/load")
	h.clock.Advance(300 * time.Millisecond)
	seg.Finish()
	h.clock.Advance(200 * time.Millisecond)
	txn.End()

	batches := h.recorder.Batches()
	require.Len(t, batches, 2)
	end := batches[1]
	require.Len(t, end, 3)
	assert.Equal(t, metrics.Observation{
		Name: "WebTransaction/Go/GET /users", Duration: 500 * time.Millisecond, Exclusive: 200 * time.Millisecond,
	}, end[0])
	assert.Equal(t, "WebTransaction", end[1].Name)
	assert.Equal(t, "HttpDispatcher", end[2].Name)
}

func TestOtherTransactionEndMetrics(t *testing.T) {
	h := newHarness(t, nil)
	txn := h.tracer.StartTransaction("job", false)
	txn.End()

	assert.Equal(t, []string{"OtherTransaction/Go/job", "OtherTransaction/all"}, h.lastBatchNames())
}

func TestEndForceFinishesOpenSegments(t *testing.T) {
	h := newHarness(t, strict)
	txn := h.tracer.StartTransaction("txn", true)

	outer := txn.StartDatastoreSegment(DatastoreParams{Product: "SQLite", Operation: "select"})
	inner := txn.StartSegment("inner")
	h.clock.Advance(time.Second)

	assert.NotPanics(t, txn.End, "forced finishing never panics, even in strict mode")

	assert.True(t, txn.Finished())
	assert.Equal(t, 1, txn.IntegrityErrors())
	for _, s := range []*Segment{outer.Segment, inner} {
		assert.Equal(t, StateFinished, s.State())
		assert.True(t, s.Forced())
		assert.Equal(t, time.Second, s.Duration())
	}
	assert.Equal(t, "inner", h.recorder.Names()[0])
	assert.Contains(t, h.recorder.Names(), "Datastore/operation/SQLite/select")
}

func TestEndIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	txn := h.tracer.StartTransaction("txn", true)
	txn.End()
	txn.End()

	assert.Len(t, h.recorder.Batches(), 1)
	assert.Zero(t, txn.IntegrityErrors())
}

func TestStartAfterEndIsViolation(t *testing.T) {
	h := newHarness(t, nil)
	txn := h.tracer.StartTransaction("txn", true)
	txn.End()

	seg := txn.StartSegment("late")
	assert.Equal(t, StateCreated, seg.State())
	assert.Equal(t, 1, txn.IntegrityErrors())
}

func TestSetNameChangesScope(t *testing.T) {
	h := newHarness(t, nil)
	txn := h.tracer.StartTransaction("unnamed", true)
	txn.SetName("GET /orders")

	txn.StartSegment("Custom/x").Finish()

	batch := h.recorder.Batches()[0]
	assert.Equal(t, "WebTransaction/Go/GET /orders", batch[0].Scope)
	txn.SetName("")
	assert.Equal(t, "GET /orders", txn.Name())
}

func TestNilAggregatorIsNoop(t *testing.T) {
	tracer := New(DefaultConfig(), WithAggregator(nil))
	txn := tracer.StartTransaction("txn", true)

	assert.NotPanics(t, func() {
		txn.StartDatastoreSegment(DatastoreParams{Product: "SQLite", Operation: "select"}).Finish()
		txn.End()
	})
}

func TestTraceHandOff(t *testing.T) {
	collector := &traceCollector{}
	h := newHarness(t, nil, WithTraceSampler(collector))
	txn := h.tracer.StartTransaction("txn", true)

	ds := txn.StartDatastoreSegment(DatastoreParams{Product: "Postgres", Operation: "select", Collection: "users"})
	ds.NoticeSQL("SELECT 1", nil, nil)
	ext := txn.StartExternalRequestSegment("resty", "http://example.com/", "GET")
	h.clock.Advance(10 * time.Millisecond)
	ext.Finish()
	ds.Finish()
	txn.End()

	require.Len(t, collector.traces, 1)
	tr := collector.traces[0]
	assert.Equal(t, txn.GUID().String(), tr.GUID)
	assert.Equal(t, "WebTransaction/Go/txn", tr.Name)
	assert.True(t, tr.IsWeb)
	require.Len(t, tr.Segments, 2)

	assert.Equal(t, "Datastore/statement/Postgres/users/select", tr.Segments[0].Name)
	assert.Empty(t, tr.Segments[0].ParentID)
	require.NotNil(t, tr.Segments[0].SQL)
	assert.Equal(t, "SELECT 1", tr.Segments[0].SQL.SQL)

	assert.Equal(t, KindExternal, tr.Segments[1].Kind)
	assert.Equal(t, ds.ID(), tr.Segments[1].ParentID)
	assert.Equal(t, 10*time.Millisecond, tr.Segments[1].Duration)
}

func TestIgnoredTransactionHasNoTrace(t *testing.T) {
	collector := &traceCollector{}
	h := newHarness(t, nil, WithTraceSampler(collector))
	txn := h.tracer.StartTransaction("txn", true)
	txn.Ignore()
	txn.End()

	assert.Empty(t, collector.traces)
}

func inboundHeaders(t *testing.T, cpid string, hdr cat.TxnHeader) MapCarrier {
	t.Helper()
	codec := cat.NewCodec(testKey)
	idHeader, err := codec.EncodeID(cpid)
	require.NoError(t, err)
	txnHeader, err := codec.EncodeTxnHeader(hdr)
	require.NoError(t, err)
	return MapCarrier{cat.HeaderID: idHeader, cat.HeaderTransaction: txnHeader}
}

func TestAcceptInboundRequest(t *testing.T) {
	caller := cat.TxnHeader{GUID: "1111222233334444", TripID: "aaaabbbbccccdddd", PathHash: "0000beef"}

	t.Run("trusted caller", func(t *testing.T) {
		h := newHarness(t, func(cfg *Config) {
			withCAT(cfg)
			cfg.CrossApp.TrustedAccountIDs = []string{"55"}
		})
		txn := h.tracer.StartTransaction("txn", true)
		txn.AcceptInboundRequest(inboundHeaders(t, peerCPID, caller))

		require.NotNil(t, txn.Inbound())
		assert.Equal(t, peerCPID, txn.Inbound().CrossProcessID)
		assert.Equal(t, caller.GUID, txn.Inbound().ReferringGUID)
		assert.Equal(t, caller.TripID, txn.TripID())
		assert.Equal(t, cat.PathHash("test-app;WebTransaction/Go/txn", caller.PathHash), txn.PathHash())

		txn.End()
		assert.Contains(t, h.lastBatchNames(), "ClientApplication/55/all")
	})

	t.Run("own account trusted implicitly", func(t *testing.T) {
		h := newHarness(t, withCAT)
		txn := h.tracer.StartTransaction("txn", true)
		txn.AcceptInboundRequest(inboundHeaders(t, "33#99", caller))
		assert.NotNil(t, txn.Inbound())
	})

	t.Run("untrusted caller", func(t *testing.T) {
		h := newHarness(t, withCAT)
		txn := h.tracer.StartTransaction("txn", true)
		txn.AcceptInboundRequest(inboundHeaders(t, peerCPID, caller))

		assert.Nil(t, txn.Inbound())
		assert.Equal(t, txn.GUID().String(), txn.TripID())
	})

	t.Run("malformed transaction header keeps caller id", func(t *testing.T) {
		h := newHarness(t, withCAT)
		txn := h.tracer.StartTransaction("txn", true)
		headers := inboundHeaders(t, "33#1", caller)
		headers[cat.HeaderTransaction] = "garbage"
		txn.AcceptInboundRequest(headers)

		require.NotNil(t, txn.Inbound())
		assert.Empty(t, txn.Inbound().ReferringGUID)
	})

	t.Run("cat disabled still captures synthetics", func(t *testing.T) {
		h := newHarness(t, nil)
		txn := h.tracer.StartTransaction("txn", true)
		headers := inboundHeaders(t, "33#1", caller)
		headers[cat.HeaderSynthetics] = "synthetic-token"
		txn.AcceptInboundRequest(headers)

		assert.Nil(t, txn.Inbound())
		assert.Equal(t, "synthetic-token", txn.Synthetics())
	})

	t.Run("panicking reader", func(t *testing.T) {
		h := newHarness(t, withCAT)
		txn := h.tracer.StartTransaction("txn", true)
		assert.NotPanics(t, func() { txn.AcceptInboundRequest(&explodingRequest{}) })
		assert.Nil(t, txn.Inbound())
	})
}

func TestResponseAppDataHeader(t *testing.T) {
	h := newHarness(t, withCAT)
	txn := h.tracer.StartTransaction("txn", true)

	_, ok := txn.ResponseAppDataHeader(10)
	assert.False(t, ok, "no inbound CAT request")

	txn.AcceptInboundRequest(inboundHeaders(t, "33#1", cat.TxnHeader{GUID: "1111222233334444"}))
	h.clock.Advance(1500 * time.Millisecond)

	value, ok := txn.ResponseAppDataHeader(2048)
	require.True(t, ok)

	appData, err := cat.NewCodec(testKey).DecodeAppData(value)
	require.NoError(t, err)
	assert.Equal(t, cat.AppData{
		CrossProcessID:  testCPID,
		TransactionName: "WebTransaction/Go/txn",
		QueueTime:       0,
		ResponseTime:    1.5,
		ContentLength:   2048,
		TransactionGUID: txn.GUID().String(),
	}, appData)
}

func TestCATDisabledWithInvalidConfig(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		withCAT(cfg)
		cfg.CrossApp.CrossProcessID = "bogus"
	})
	assert.False(t, h.tracer.catEnabled())
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("cross application tracing disabled").Len())
}

func TestContextRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	txn := h.tracer.StartTransaction("txn", true)

	ctx := NewContext(context.Background(), txn)
	assert.Same(t, txn, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

func TestMonitorReceivesTracerHealth(t *testing.T) {
	mon := monitoring.NewMetrics(prometheus.NewRegistry())
	h := newHarness(t, nil, WithMonitor(mon))

	txn := h.tracer.StartTransaction("txn", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(mon.TransactionsActive))

	seg := txn.StartSegment("x")
	seg.Finish()
	seg.Finish()
	txn.End()

	assert.Equal(t, 0.0, testutil.ToFloat64(mon.TransactionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(mon.IntegrityErrors.WithLabelValues("double_finish")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mon.SegmentsFinished.WithLabelValues("custom", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mon.TransactionsTotal.WithLabelValues("web")))
}

func TestConcurrentTransactionsShareTable(t *testing.T) {
	table := metrics.NewTable()
	tracer := New(DefaultConfig(), WithAggregator(table))

	const workers = 16
	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			txn := tracer.StartTransaction("txn", true)
			txn.StartDatastoreSegment(DatastoreParams{Product: "SQLite", Operation: "select"}).Finish()
			txn.End()
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}

	stats, ok := table.Get("Datastore/all", "")
	require.True(t, ok)
	assert.Equal(t, int64(workers), stats.CallCount)
	scoped, ok := table.Get("Datastore/operation/SQLite/select", "WebTransaction/Go/txn")
	require.True(t, ok)
	assert.Equal(t, int64(workers), scoped.CallCount)
}
