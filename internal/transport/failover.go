package transport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/nebulaglass/nebula-client/pkg/errors"
)

// Failover reasons reported to observers
const (
	ReasonNoResponse = "no_response"
	ReasonStatus404  = "status_404"
	ReasonStatus502  = "status_502"
)

// Attempt describes one try of a logical request against one address
type Attempt struct {
	Request  *Request
	Index    int
	BaseURL  string
	Response *Response
	Err      error
	Duration time.Duration
	// FailoverReason is set when the attempt failed at address level and
	// another candidate follows
	FailoverReason string
}

// Observer is notified around every attempt. AttemptStart may return a
// derived context and may add headers to req; both are used for that
// attempt only.
type Observer interface {
	AttemptStart(ctx context.Context, req *Request, index int, baseURL string) context.Context
	AttemptDone(ctx context.Context, attempt Attempt)
	Exhausted(ctx context.Context, req *Request, attempts int)
}

// NopObserver ignores all notifications
type NopObserver struct{}

func (NopObserver) AttemptStart(ctx context.Context, _ *Request, _ int, _ string) context.Context {
	return ctx
}
func (NopObserver) AttemptDone(context.Context, Attempt)     {}
func (NopObserver) Exhausted(context.Context, *Request, int) {}

// FailoverOption configures a Failover
type FailoverOption func(*Failover)

// WithObserver installs an attempt observer
func WithObserver(observer Observer) FailoverOption {
	return func(f *Failover) {
		if observer != nil {
			f.observer = observer
		}
	}
}

// Failover sends each logical request to the candidate addresses in order
// until one of them gives a usable answer.
//
// The candidate list is fetched once per logical request and walked forward
// only: there is no wrap-around and no memory of which address worked for a
// previous request. Attempts are strictly sequential. A transport error or a
// 404/502 status moves on to the next candidate; any other response, success
// or not, is returned as is. When every candidate failed the last failure is
// returned unchanged.
type Failover struct {
	candidates func() []string
	dial       func(baseURL string) Doer
	observer   Observer
}

// NewFailover creates the failover layer. dial builds the single-address
// Doer for a candidate, usually Dialer(client).
func NewFailover(candidates func() []string, dial func(baseURL string) Doer, opts ...FailoverOption) *Failover {
	f := &Failover{
		candidates: candidates,
		dial:       dial,
		observer:   NopObserver{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithFailover returns the failover layer as a Doer
func WithFailover(candidates func() []string, dial func(baseURL string) Doer, opts ...FailoverOption) Doer {
	return NewFailover(candidates, dial, opts...)
}

// Do implements Doer
func (f *Failover) Do(ctx context.Context, req *Request) (*Response, error) {
	bases := f.candidates()
	if len(bases) == 0 {
		return nil, apperrors.NewUnreachableError("", nil).WithDetail("reason", "no candidate base address")
	}

	var (
		resp *Response
		err  error
	)
	for i, base := range bases {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return nil, err
		}

		attemptReq := req.Clone()
		attemptCtx := f.observer.AttemptStart(ctx, attemptReq, i, base)

		start := time.Now()
		resp, err = f.dial(base).Do(attemptCtx, attemptReq)
		if resp != nil {
			resp.Attempts = i + 1
		}

		reason := failoverReason(ctx, resp, err)
		attempt := Attempt{
			Request:  attemptReq,
			Index:    i,
			BaseURL:  base,
			Response: resp,
			Err:      err,
			Duration: time.Since(start),
		}
		if reason == "" {
			f.observer.AttemptDone(attemptCtx, attempt)
			return resp, err
		}
		if i < len(bases)-1 {
			attempt.FailoverReason = reason
		}
		f.observer.AttemptDone(attemptCtx, attempt)
	}

	f.observer.Exhausted(ctx, req, len(bases))
	if appErr, ok := apperrors.As(err); ok {
		appErr.WithDetail("attempts", strconv.Itoa(len(bases)))
	}
	return resp, err
}

// failoverReason classifies an attempt. An empty reason means the attempt is
// final: it succeeded, failed at application level, or the caller gave up.
func failoverReason(ctx context.Context, resp *Response, err error) string {
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		return ReasonNoResponse
	}
	if resp == nil {
		return ReasonNoResponse
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ReasonStatus404
	case http.StatusBadGateway:
		return ReasonStatus502
	}
	return ""
}

// IsAddressFailure reports whether resp/err would make Failover try the next
// candidate
func IsAddressFailure(resp *Response, err error) bool {
	return failoverReason(context.Background(), resp, err) != ""
}
