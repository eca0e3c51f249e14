package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	apperrors "github.com/nebulaglass/nebula-client/pkg/errors"
)

// maxResponseBody caps how much of a response is buffered
const maxResponseBody = 32 << 20

// DefaultHTTPClient returns a client with connection pooling. It sets no
// overall timeout; every request carries its own per-attempt deadline.
func DefaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{Transport: transport}
}

// HTTPTransport sends requests to a single base address
type HTTPTransport struct {
	client  *http.Client
	baseURL string
}

// NewHTTPTransport creates a transport for baseURL. A nil client uses
// DefaultHTTPClient.
func NewHTTPTransport(client *http.Client, baseURL string) *HTTPTransport {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &HTTPTransport{client: client, baseURL: baseURL}
}

// Dialer returns a failover dialer sharing client between all addresses
func Dialer(client *http.Client) func(baseURL string) Doer {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return func(baseURL string) Doer {
		return NewHTTPTransport(client, baseURL)
	}
}

// Do performs one network call. Any HTTP status yields a Response; only the
// absence of a usable response is an error, always of type address.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if req.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, JoinURL(t.baseURL, req.Path), body)
	if err != nil {
		return nil, apperrors.NewUnreachableError(t.baseURL, err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, t.noResponse(ctx, attemptCtx, req.Timeout, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, t.noResponse(ctx, attemptCtx, req.Timeout, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		BaseURL:    t.baseURL,
	}, nil
}

func (t *HTTPTransport) noResponse(ctx, attemptCtx context.Context, timeout time.Duration, err error) error {
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return apperrors.NewAddressTimeoutError(t.baseURL, timeout, err)
	}
	return apperrors.NewUnreachableError(t.baseURL, err)
}
