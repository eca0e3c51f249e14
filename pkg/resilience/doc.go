// Package resilience provides attempt-level retry with backoff for calls
// that are expected to be slow or flaky.
//
// # Retry with Backoff
//
// The retrier re-runs an operation until it succeeds, returns an error the
// configured predicate rejects, or the attempt bound is reached. The delay
// between attempts grows either exponentially or linearly and may carry
// jitter.
//
//	retrier := resilience.NewRetrier(resilience.DefaultRetryConfig())
//	err := retrier.Execute(ctx, func(ctx context.Context) error {
//		return riskyOperation(ctx)
//	})
//
// # Analysis Policy
//
// Submitting a document for analysis may take minutes while the backend
// warms up its models. AnalysisRetryConfig retries every failure and waits
// 1×, 2×, ... the base delay between attempts:
//
//	retrier := resilience.NewRetrier(resilience.AnalysisRetryConfig(3, 2*time.Second))
//	analysis, err := resilience.ExecuteWithResult(ctx, retrier, submit)
//
// This retry is independent of address failover in the transport package:
// each attempt may itself walk every candidate base address.
//
// A Retrier holds no mutable state and may be shared between goroutines.
package resilience
