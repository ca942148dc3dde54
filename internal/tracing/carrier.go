package tracing

import (
	"net/http"
)

// OutboundRequest is the capability a traced outbound request must offer.
type OutboundRequest interface {
	// HostHeader returns the caller-supplied Host header, or "".
	HostHeader() string
	SetHeader(key, value string)
}

// HeaderRemover is implemented by outbound requests that can drop a header.
type HeaderRemover interface {
	RemoveHeader(key string)
}

// HeaderReader reads a named header.
type HeaderReader interface {
	Header(key string) string
}

// StatusCoder is implemented by responses that know their status code.
type StatusCoder interface {
	StatusCode() int
}

// HTTPHeader adapts http.Header.
type HTTPHeader http.Header

// HostHeader implements OutboundRequest.
func (h HTTPHeader) HostHeader() string { return http.Header(h).Get("Host") }

// SetHeader implements OutboundRequest.
func (h HTTPHeader) SetHeader(key, value string) { http.Header(h).Set(key, value) }

// RemoveHeader implements HeaderRemover.
func (h HTTPHeader) RemoveHeader(key string) { http.Header(h).Del(key) }

// Header implements HeaderReader.
func (h HTTPHeader) Header(key string) string { return http.Header(h).Get(key) }

type httpRequest struct {
	r *http.Request
}

// HTTPRequest adapts an outbound *http.Request.
func HTTPRequest(r *http.Request) OutboundRequest {
	if r == nil {
		return nil
	}
	return httpRequest{r: r}
}

func (h httpRequest) HostHeader() string {
	if h.r.Host != "" {
		return h.r.Host
	}
	return h.r.Header.Get("Host")
}

func (h httpRequest) SetHeader(key, value string) {
	if h.r.Header == nil {
		h.r.Header = make(http.Header)
	}
	h.r.Header.Set(key, value)
}

func (h httpRequest) RemoveHeader(key string) { h.r.Header.Del(key) }

type httpResponse struct {
	r *http.Response
}

// HTTPResponse adapts an *http.Response.
func HTTPResponse(r *http.Response) HeaderReader {
	if r == nil {
		return nil
	}
	return httpResponse{r: r}
}

func (h httpResponse) Header(key string) string { return h.r.Header.Get(key) }

func (h httpResponse) StatusCode() int { return h.r.StatusCode }

// MapCarrier is a plain string map carrier, used for non-HTTP transports.
type MapCarrier map[string]string

// HostHeader implements OutboundRequest.
func (m MapCarrier) HostHeader() string { return m["Host"] }

// SetHeader implements OutboundRequest.
func (m MapCarrier) SetHeader(key, value string) { m[key] = value }

// RemoveHeader implements HeaderRemover.
func (m MapCarrier) RemoveHeader(key string) { delete(m, key) }

// Header implements HeaderReader.
func (m MapCarrier) Header(key string) string { return m[key] }
