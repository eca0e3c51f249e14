// Package transport implements the request pipeline every API call goes
// through. Each layer implements Doer and wraps the next one:
//
//	WithRequestID -> observability -> WithAuth -> Failover -> HTTPTransport
//
// HTTPTransport performs exactly one network call against one base address.
// Failover walks the candidate base addresses of a single logical request.
// The outer layers add headers and telemetry without knowing about
// addresses.
package transport

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// HeaderRequestID carries the logical request identifier
const HeaderRequestID = "X-Request-ID"

// Request is one logical API request. It is never mutated by a layer; layers
// that need to change it work on a Clone.
type Request struct {
	Method string
	// Path is relative to the base address and may carry a query string
	Path   string
	Body   []byte
	Header http.Header
	// Timeout bounds each attempt against a single address, zero means none
	Timeout time.Duration
}

// NewRequest creates a request with an empty header
func NewRequest(method, path string, body []byte) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Body:   body,
		Header: make(http.Header),
	}
}

// Clone returns a copy whose header can be modified independently. The body
// is shared since no layer writes to it.
func (r *Request) Clone() *Request {
	out := *r
	if r.Header != nil {
		out.Header = r.Header.Clone()
	} else {
		out.Header = make(http.Header)
	}
	return &out
}

// Response is a fully buffered reply together with the address that
// produced it
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// BaseURL is the candidate address that answered
	BaseURL string
	// Attempts is how many candidate addresses were tried
	Attempts int
}

// OK reports whether the status is 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Doer sends a request and returns its response. A non-2xx status is not an
// error at this level.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// DoerFunc adapts a function to Doer
type DoerFunc func(ctx context.Context, req *Request) (*Response, error)

// Do implements Doer
func (f DoerFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware decorates a Doer
type Middleware func(next Doer) Doer

// Chain wraps d with the middlewares, the first one being the outermost
func Chain(d Doer, middlewares ...Middleware) Doer {
	for i := len(middlewares) - 1; i >= 0; i-- {
		d = middlewares[i](d)
	}
	return d
}

// JoinURL appends path to baseURL with exactly one slash between them
func JoinURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
