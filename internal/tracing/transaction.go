package tracing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apmtrace/internal/metrics"
	"github.com/GriffinCanCode/apmtrace/internal/shared/id"
	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

// ErrIntegrity is wrapped by every instrumentation bug the tracer detects.
var ErrIntegrity = errors.New("tracing: integrity violation")

const (
	webPrefix   = "WebTransaction/Go/"
	otherPrefix = "OtherTransaction/Go/"
)

// InboundCAT describes a trusted CAT caller.
type InboundCAT struct {
	CrossProcessID    string
	ReferringGUID     string
	ReferringTripID   string
	ReferringPathHash string
}

// Transaction is one unit of work. It must only be used from the goroutine
// that drives it.
type Transaction struct {
	tracer *Tracer
	guid   id.TransactionGUID
	name   string
	isWeb  bool
	start  time.Time
	end    time.Time

	stack    []*Segment
	segments []*Segment

	synthetics     string
	crossAppCaller bool
	inbound        *InboundCAT

	ignored         bool
	finished        bool
	integrityErrors int

	log *zap.Logger
}

// GUID returns the transaction identifier.
func (txn *Transaction) GUID() id.TransactionGUID {
	if txn == nil {
		return ""
	}
	return txn.guid
}

// Name returns the name given at start or by SetName.
func (txn *Transaction) Name() string {
	if txn == nil {
		return ""
	}
	return txn.name
}

// IsWeb reports the classification fixed at start.
func (txn *Transaction) IsWeb() bool {
	if txn == nil {
		return false
	}
	return txn.isWeb
}

// StartTime returns when the transaction began.
func (txn *Transaction) StartTime() time.Time {
	if txn == nil {
		return time.Time{}
	}
	return txn.start
}

// IsCrossAppCaller reports whether CAT headers were added to an outbound request.
func (txn *Transaction) IsCrossAppCaller() bool {
	if txn == nil {
		return false
	}
	return txn.crossAppCaller
}

// Inbound returns the trusted CAT caller, if any.
func (txn *Transaction) Inbound() *InboundCAT {
	if txn == nil {
		return nil
	}
	return txn.inbound
}

// Synthetics returns the pass-through synthetics token.
func (txn *Transaction) Synthetics() string {
	if txn == nil {
		return ""
	}
	return txn.synthetics
}

// IntegrityErrors returns how many instrumentation bugs were absorbed.
func (txn *Transaction) IntegrityErrors() int {
	if txn == nil {
		return 0
	}
	return txn.integrityErrors
}

// Finished reports whether End has been called.
func (txn *Transaction) Finished() bool {
	if txn == nil {
		return false
	}
	return txn.finished
}

// MetricName returns the prefixed name used as the scope of segment metrics.
func (txn *Transaction) MetricName() string {
	if txn == nil {
		return ""
	}
	if txn.isWeb {
		return webPrefix + txn.name
	}
	return otherPrefix + txn.name
}

// SetName renames the transaction. Segments finished earlier keep the old scope.
func (txn *Transaction) SetName(name string) {
	if txn == nil || txn.finished || name == "" {
		return
	}
	txn.name = name
}

// SetSynthetics stores a synthetics token to forward on outbound requests.
func (txn *Transaction) SetSynthetics(token string) {
	if txn == nil {
		return
	}
	txn.synthetics = token
}

// Ignore stops the transaction from recording metrics or traces.
func (txn *Transaction) Ignore() {
	if txn == nil {
		return
	}
	txn.ignored = true
}

// Ignored reports whether Ignore was called.
func (txn *Transaction) Ignored() bool {
	if txn == nil {
		return false
	}
	return txn.ignored
}

// Recording reports whether the transaction is eligible to record metrics.
func (txn *Transaction) Recording() bool {
	return txn != nil && !txn.ignored && !txn.finished
}

// NewSegment creates an unstarted custom segment.
func (txn *Transaction) NewSegment(name string) *Segment {
	if txn == nil {
		return nil
	}
	return newSegment(txn, KindCustom, name)
}

// StartSegment creates and starts a custom segment.
func (txn *Transaction) StartSegment(name string) *Segment {
	s := txn.NewSegment(name)
	s.Start()
	return s
}

// StartDatastoreSegment creates and starts a datastore segment.
func (txn *Transaction) StartDatastoreSegment(p DatastoreParams) *DatastoreSegment {
	d := txn.NewDatastoreSegment(p)
	d.Start()
	return d
}

// StartExternalRequestSegment creates and starts an external request segment.
func (txn *Transaction) StartExternalRequestSegment(library, uri, procedure string) *ExternalRequestSegment {
	e := txn.NewExternalRequestSegment(library, uri, procedure)
	e.Start()
	return e
}

// TripID returns the caller's trip id, or this transaction's GUID.
func (txn *Transaction) TripID() string {
	if txn == nil {
		return ""
	}
	if txn.inbound != nil && txn.inbound.ReferringTripID != "" {
		return txn.inbound.ReferringTripID
	}
	return txn.guid.String()
}

// PathHash returns this transaction's path hash seeded with the caller's.
func (txn *Transaction) PathHash() string {
	if txn == nil {
		return ""
	}
	var referring string
	if txn.inbound != nil {
		referring = txn.inbound.ReferringPathHash
	}
	return cat.PathHash(txn.tracer.cfg.AppName+";"+txn.MetricName(), referring)
}

// AcceptInboundRequest reads the synthetics token and CAT request headers of
// an inbound request. Untrusted or malformed CAT headers are ignored.
func (txn *Transaction) AcceptInboundRequest(h HeaderReader) {
	if txn == nil || h == nil {
		return
	}
	defer txn.recoverHook("accept_inbound_request")

	if token := h.Header(cat.HeaderSynthetics); token != "" {
		txn.synthetics = token
	}

	t := txn.tracer
	if !t.catEnabled() {
		return
	}
	raw := h.Header(cat.HeaderID)
	if raw == "" {
		return
	}

	cpid, err := t.codec.DecodeID(raw)
	if err != nil {
		txn.log.Debug("ignoring inbound CAT id", zap.Error(err))
		t.monitor.RecordCATHeader("inbound_id", "malformed")
		return
	}
	account, _ := cat.AccountID(cpid)
	if !t.isTrusted(account) {
		txn.log.Debug("ignoring CAT request from untrusted account", zap.String("account", account))
		t.monitor.RecordCATHeader("inbound_id", "untrusted")
		return
	}

	inbound := &InboundCAT{CrossProcessID: cpid}
	if rawTxn := h.Header(cat.HeaderTransaction); rawTxn != "" {
		hdr, err := t.codec.DecodeTxnHeader(rawTxn)
		if err != nil {
			txn.log.Debug("ignoring inbound CAT transaction header", zap.Error(err))
			t.monitor.RecordCATHeader("inbound_transaction", "malformed")
		} else {
			inbound.ReferringGUID = hdr.GUID
			inbound.ReferringTripID = hdr.TripID
			inbound.ReferringPathHash = hdr.PathHash
		}
	}
	txn.inbound = inbound
	t.monitor.RecordCATHeader("inbound_id", "ok")
}

// ResponseAppDataHeader encodes the App-Data header for a trusted CAT caller.
// The boolean is false when no header should be sent.
func (txn *Transaction) ResponseAppDataHeader(contentLength int64) (string, bool) {
	if txn == nil || txn.inbound == nil || txn.ignored || !txn.tracer.catEnabled() {
		return "", false
	}
	t := txn.tracer
	value, err := t.codec.EncodeAppData(cat.AppData{
		CrossProcessID:  t.cfg.CrossApp.CrossProcessID,
		TransactionName: txn.MetricName(),
		QueueTime:       0,
		ResponseTime:    t.clock.Now().Sub(txn.start).Seconds(),
		ContentLength:   contentLength,
		TransactionGUID: txn.guid.String(),
	})
	if err != nil {
		txn.log.Debug("failed to encode CAT app data", zap.Error(err))
		t.monitor.RecordCATHeader("outbound_app_data", "error")
		return "", false
	}
	t.monitor.RecordCATHeader("outbound_app_data", "ok")
	return value, true
}

// End finishes the transaction. Segments still open are force finished and
// counted as integrity errors without panicking. Calling End twice is a no-op.
func (txn *Transaction) End() {
	if txn == nil || txn.finished {
		return
	}
	if n := len(txn.stack); n > 0 {
		txn.violation(fmt.Sprintf("%d segments open at transaction end", n), txn.stack[n-1], false)
		for i := n - 1; i >= 0; i-- {
			txn.stack[i].complete(true)
		}
		txn.stack = nil
	}

	txn.end = txn.tracer.clock.Now()
	if txn.end.Before(txn.start) {
		txn.end = txn.start
	}
	txn.record(txn.transactionObservations())
	txn.finished = true

	t := txn.tracer
	t.monitor.TransactionEnded(txn.isWeb)
	if t.traceSampler != nil && !txn.ignored {
		t.traceSampler.TransactionFinished(txn.trace())
	}
}

func (txn *Transaction) transactionObservations() []metrics.Observation {
	duration := txn.end.Sub(txn.start)
	var roots []*Segment
	for _, s := range txn.segments {
		if s.parent == nil {
			roots = append(roots, s)
		}
	}
	exclusive := exclusiveDuration(duration, roots)

	name := txn.MetricName()
	obs := []metrics.Observation{{Name: name, Duration: duration, Exclusive: exclusive}}
	rollup := func(n string) {
		obs = append(obs, metrics.Observation{Name: n, Duration: duration, Exclusive: duration})
	}
	if txn.isWeb {
		rollup("WebTransaction")
		rollup("HttpDispatcher")
	} else {
		rollup("OtherTransaction/all")
	}
	if txn.inbound != nil {
		if account, ok := cat.AccountID(txn.inbound.CrossProcessID); ok {
			rollup("ClientApplication/" + account + "/all")
		}
	}
	return obs
}

// record forwards a batch to the aggregator while the transaction is eligible.
func (txn *Transaction) record(batch []metrics.Observation) {
	if txn.ignored || txn.finished || len(batch) == 0 {
		return
	}
	txn.tracer.aggregator.Merge(batch)
}

func (txn *Transaction) top() *Segment {
	if len(txn.stack) == 0 {
		return nil
	}
	return txn.stack[len(txn.stack)-1]
}

func (txn *Transaction) indexOf(s *Segment) int {
	for i := len(txn.stack) - 1; i >= 0; i-- {
		if txn.stack[i] == s {
			return i
		}
	}
	return -1
}

// violation reports an instrumentation bug. In strict mode it panics when
// strictPanics is set.
func (txn *Transaction) violation(reason string, s *Segment, strictPanics bool) {
	txn.integrityErrors++
	err := fmt.Errorf("%w: %s", ErrIntegrity, reason)

	fields := []zap.Field{zap.Error(err), zap.Stack("stack")}
	if s != nil {
		fields = append(fields,
			zap.String("segment", s.name),
			zap.String("segment_id", s.id.String()),
			zap.Stringer("state", s.state))
	}
	txn.log.Error("tracing integrity violation", fields...)
	txn.tracer.monitor.RecordIntegrityError(metricReason(reason))

	if strictPanics && txn.tracer.cfg.StrictIntegrity {
		panic(err)
	}
}

func metricReason(reason string) string {
	if strings.HasSuffix(reason, "open at transaction end") {
		return "open_at_end"
	}
	return strings.ReplaceAll(reason, " ", "_")
}

// recoverHook absorbs a panic raised by a host adapter inside a header hook.
func (txn *Transaction) recoverHook(hook string) {
	if r := recover(); r != nil {
		txn.log.Error("tracing hook failed",
			zap.String("hook", hook),
			zap.Any("panic", r),
			zap.Stack("stack"))
		txn.tracer.monitor.RecordHookFailure(hook)
	}
}

// normalizeURI drops credentials, query and fragment.
func normalizeURI(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}
