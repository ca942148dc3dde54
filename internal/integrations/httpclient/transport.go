package httpclient

import (
	"net/http"

	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

const defaultLibrary = "net/http"

// Transport records outbound requests as external request segments.
type Transport struct {
	Base    http.RoundTripper
	Library string
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, library string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if library == "" {
		library = defaultLibrary
	}
	return &Transport{Base: base, Library: library}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	txn := tracing.FromContext(req.Context())
	if txn == nil {
		return t.Base.RoundTrip(req)
	}

	seg := txn.StartExternalRequestSegment(t.Library, req.URL.String(), req.Method)
	defer seg.Finish()

	// a RoundTripper must not modify the caller's request
	out := req.Clone(req.Context())
	seg.AddRequestHeaders(tracing.HTTPRequest(out))

	resp, err := t.Base.RoundTrip(out)
	if resp != nil {
		seg.ReadResponseHeaders(tracing.HTTPResponse(resp))
	}
	return resp, err
}
