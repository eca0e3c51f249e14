package transport

import (
	"context"

	"github.com/nebulaglass/nebula-client/pkg/logging"
)

// WithRequestID stamps every logical request with an X-Request-ID header,
// keeping one the caller already set. All failover attempts of the request
// share the id, and it is placed in the context for log correlation.
func WithRequestID() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			out := req.Clone()
			id := out.Header.Get(HeaderRequestID)
			if id == "" {
				id = logging.NewRequestID()
				out.Header.Set(HeaderRequestID, id)
			}
			return next.Do(logging.WithRequestID(ctx, id), out)
		})
	}
}

// RequestID returns the id carried by req, if any
func RequestID(req *Request) string {
	if req == nil || req.Header == nil {
		return ""
	}
	return req.Header.Get(HeaderRequestID)
}
