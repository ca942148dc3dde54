package tracing

import (
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apmtrace/internal/shared/utils"
	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

const unknownHost = "unknown"

// ExternalRequestSegment times an outbound call and carries the CAT
// request/response protocol.
type ExternalRequestSegment struct {
	*Segment

	library      string
	procedure    string
	uri          *url.URL
	hostOverride string
	statusCode   int
	appData      *cat.AppData
}

// NewExternalRequestSegment creates an unstarted external request segment.
func (txn *Transaction) NewExternalRequestSegment(library, uri, procedure string) *ExternalRequestSegment {
	if txn == nil {
		return nil
	}
	e := &ExternalRequestSegment{
		library:   utils.SanitizeSegment(library, "unknown"),
		procedure: utils.SanitizeSegment(procedure, "unknown"),
	}
	u, err := normalizeURI(uri)
	if err != nil {
		txn.log.Debug("unparseable external uri", zap.Error(err))
	} else {
		e.uri = u
	}

	e.Segment = newSegment(txn, KindExternal, "")
	e.Segment.external = e
	e.Segment.name = e.metricName()
	return e
}

// Start starts the segment.
func (e *ExternalRequestSegment) Start() {
	if e == nil {
		return
	}
	e.Segment.Start()
}

// Finish finishes the segment and reports its metrics.
func (e *ExternalRequestSegment) Finish() {
	if e == nil {
		return
	}
	e.Segment.Finish()
}

// Library returns the client library identifier.
func (e *ExternalRequestSegment) Library() string {
	if e == nil {
		return ""
	}
	return e.library
}

// Procedure returns the request method.
func (e *ExternalRequestSegment) Procedure() string {
	if e == nil {
		return ""
	}
	return e.procedure
}

// URI returns the normalized request URI, empty when it could not be parsed.
func (e *ExternalRequestSegment) URI() string {
	if e == nil || e.uri == nil {
		return ""
	}
	return e.uri.String()
}

// AppData returns the decoded CAT response, nil for an untraced peer.
func (e *ExternalRequestSegment) AppData() *cat.AppData {
	if e == nil {
		return nil
	}
	return e.appData
}

// Host returns the host override if observed, else the URI host.
func (e *ExternalRequestSegment) Host() string {
	if e == nil {
		return ""
	}
	if e.hostOverride != "" {
		return e.hostOverride
	}
	if e.uri != nil {
		if h := e.uri.Hostname(); h != "" {
			return utils.SanitizeSegment(h, unknownHost)
		}
	}
	return unknownHost
}

func (e *ExternalRequestSegment) metricName() string {
	if e.appData != nil {
		return "ExternalTransaction/" + e.Host() + "/" + e.appData.CrossProcessID + "/" + e.appData.TransactionName
	}
	return "External/" + e.Host() + "/" + e.library + "/" + e.procedure
}

func (e *ExternalRequestSegment) recomputeName() {
	e.name = e.metricName()
}

func (e *ExternalRequestSegment) rollups(web bool) []string {
	host := e.Host()
	names := make([]string, 0, 4)
	names = append(names, "External/all", "External/"+host+"/all")
	if web {
		names = append(names, "External/allWeb")
	} else {
		names = append(names, "External/allOther")
	}
	if e.appData != nil {
		names = append(names, "ExternalApp/"+host+"/"+e.appData.CrossProcessID+"/all")
	}
	return names
}

func (e *ExternalRequestSegment) onComplete() {
	if u := e.URI(); u != "" {
		e.AddParam("uri", u)
	}
	e.AddParam("library", e.library)
	e.AddParam("procedure", e.procedure)
	if e.statusCode != 0 {
		e.AddParam("http.statusCode", e.statusCode)
	}
	if e.appData != nil {
		e.AddParam("transaction_guid", e.appData.TransactionGUID)
	}
}

// AddRequestHeaders prepares an outbound request before it is sent: it picks
// up the host header, forwards the synthetics token and attaches CAT request
// headers. Failures are logged and never reach the caller.
func (e *ExternalRequestSegment) AddRequestHeaders(req OutboundRequest) {
	if e == nil || req == nil || e.state == StateFinished {
		return
	}
	txn := e.txn
	defer txn.recoverHook("add_request_headers")

	if host := hostWithoutPort(req.HostHeader()); host != "" {
		e.hostOverride = utils.SanitizeSegment(host, unknownHost)
		e.recomputeName()
	}

	if txn.synthetics != "" {
		req.SetHeader(cat.HeaderSynthetics, txn.synthetics)
	}

	t := txn.tracer
	if !t.catEnabled() || !txn.Recording() {
		return
	}
	idHeader, err := t.codec.EncodeID(t.cfg.CrossApp.CrossProcessID)
	if err != nil {
		txn.log.Debug("failed to encode CAT id", zap.Error(err))
		t.monitor.RecordCATHeader("outbound_id", "error")
		return
	}
	txnHeader, err := t.codec.EncodeTxnHeader(cat.TxnHeader{
		GUID:     txn.guid.String(),
		TripID:   txn.TripID(),
		PathHash: txn.PathHash(),
	})
	if err != nil {
		txn.log.Debug("failed to encode CAT transaction header", zap.Error(err))
		t.monitor.RecordCATHeader("outbound_transaction", "error")
		return
	}

	setCATPair(req, idHeader, txnHeader)
	txn.crossAppCaller = true
	t.monitor.RecordCATHeader("outbound_transaction", "ok")
}

// setCATPair writes both CAT request headers. If the second write panics the
// first is withdrawn before the panic continues, so a callee never sees half
// a pair.
func setCATPair(req OutboundRequest, idHeader, txnHeader string) {
	req.SetHeader(cat.HeaderID, idHeader)
	defer func() {
		if r := recover(); r != nil {
			if rm, ok := req.(HeaderRemover); ok {
				rm.RemoveHeader(cat.HeaderID)
			} else {
				req.SetHeader(cat.HeaderID, "")
			}
			panic(r)
		}
	}()
	req.SetHeader(cat.HeaderTransaction, txnHeader)
}

// ReadResponseHeaders inspects the response of the traced call. A valid CAT
// App-Data header renames the segment after the callee's transaction.
func (e *ExternalRequestSegment) ReadResponseHeaders(resp HeaderReader) {
	if e == nil || resp == nil || e.state == StateFinished {
		return
	}
	txn := e.txn
	defer txn.recoverHook("read_response_headers")

	if sc, ok := resp.(StatusCoder); ok {
		e.statusCode = sc.StatusCode()
	}

	t := txn.tracer
	if !t.catEnabled() || !txn.Recording() {
		return
	}
	raw := resp.Header(cat.HeaderAppData)
	if raw == "" {
		return
	}

	appData, err := t.codec.DecodeAppData(raw)
	if err != nil {
		txn.log.Debug("ignoring malformed CAT app data", zap.Error(err))
		t.monitor.RecordCATHeader("inbound_app_data", "malformed")
		return
	}
	if !cat.ValidCrossProcessID(appData.CrossProcessID) {
		txn.log.Debug("ignoring CAT app data with invalid cross process id",
			zap.String("cross_process_id", appData.CrossProcessID))
		t.monitor.RecordCATHeader("inbound_app_data", "invalid_id")
		return
	}

	e.appData = &appData
	e.recomputeName()
	t.monitor.RecordCATHeader("inbound_app_data", "ok")
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return strings.Trim(hostport, "[]")
}
