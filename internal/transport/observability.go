package transport

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	apperrors "github.com/nebulaglass/nebula-client/pkg/errors"
	"github.com/nebulaglass/nebula-client/pkg/logging"
	"github.com/nebulaglass/nebula-client/pkg/metrics"
	"github.com/nebulaglass/nebula-client/pkg/tracing"
)

// Request outcomes recorded in metrics
const (
	OutcomeSuccess   = "success"
	OutcomeHTTPError = "http_error"
	OutcomeError     = "error"
)

// Instrumentation logs, measures and traces the pipeline. It observes the
// failover loop and provides the middleware for logical requests. Any of its
// collaborators may be nil.
type Instrumentation struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  *tracing.TracingService
}

// NewInstrumentation creates the instrumentation. A nil logger uses the
// global one.
func NewInstrumentation(logger *logging.Logger, m *metrics.Metrics, tracer *tracing.TracingService) *Instrumentation {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Instrumentation{logger: logger, metrics: m, tracer: tracer}
}

// Middleware opens the span of a logical request and records its outcome
func (in *Instrumentation) Middleware() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			var span oteltrace.Span
			if in.tracer != nil {
				ctx, span = in.tracer.StartRequestSpan(ctx, req.Method, req.Path, RequestID(req))
				defer span.End()
				ctx = tracing.WithTraceContext(ctx)
			}

			start := time.Now()
			resp, err := next.Do(ctx, req)
			duration := time.Since(start)

			outcome, status, attempts, baseURL := OutcomeError, 0, 0, ""
			if resp != nil {
				status, attempts, baseURL = resp.StatusCode, resp.Attempts, resp.BaseURL
				outcome = OutcomeHTTPError
				if resp.OK() {
					outcome = OutcomeSuccess
				}
			} else if appErr, ok := apperrors.As(err); ok {
				// no response from any candidate: the error carries the tally
				attempts, _ = strconv.Atoi(appErr.Details["attempts"])
				baseURL = appErr.Details["base_url"]
			}

			if span != nil {
				if err != nil {
					in.tracer.RecordError(span, err)
				} else if resp != nil {
					in.tracer.RecordStatus(span, status)
				}
			}
			in.metrics.RecordRequest(req.Method, outcome, duration)
			in.logger.LogRequest(ctx, req.Method, req.Path, baseURL, status, attempts, duration)

			return resp, err
		})
	}
}

// AttemptStart implements Observer
func (in *Instrumentation) AttemptStart(ctx context.Context, req *Request, index int, baseURL string) context.Context {
	if in.tracer == nil {
		return ctx
	}
	ctx, _ = in.tracer.StartAttemptSpan(ctx, req.Method, baseURL, index)
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))
	return ctx
}

// AttemptDone implements Observer
func (in *Instrumentation) AttemptDone(ctx context.Context, attempt Attempt) {
	status := 0
	if attempt.Response != nil {
		status = attempt.Response.StatusCode
	}

	if in.tracer != nil {
		span := oteltrace.SpanFromContext(ctx)
		if attempt.Err != nil {
			in.tracer.RecordError(span, attempt.Err)
		} else {
			in.tracer.RecordStatus(span, status)
		}
		span.End()
	}

	result := attemptResult(attempt.Err, status)
	in.metrics.RecordAttempt(attempt.BaseURL, result, attempt.Duration)
	in.logger.LogAttempt(ctx, attempt.Request.Method, attempt.Request.Path, attempt.BaseURL,
		attempt.Index, status, attempt.Err, attempt.Duration)

	if attempt.FailoverReason != "" {
		in.metrics.RecordFailover(attempt.BaseURL, attempt.FailoverReason)
		in.logger.WithContext(ctx).WithFields(logrus.Fields{
			"base_url":  attempt.BaseURL,
			"candidate": attempt.Index,
			"reason":    attempt.FailoverReason,
		}).Info("Candidate failed, trying next address")
	}
}

// Exhausted implements Observer
func (in *Instrumentation) Exhausted(ctx context.Context, req *Request, attempts int) {
	in.metrics.RecordExhausted(req.Method)
	in.logger.WithContext(ctx).WithFields(logrus.Fields{
		"http_method": req.Method,
		"http_path":   req.Path,
		"attempts":    attempts,
	}).Warn("All candidate addresses failed")
}

func attemptResult(err error, status int) string {
	if err != nil {
		return "no_response"
	}
	return strconv.Itoa(status)
}
