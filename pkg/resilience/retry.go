package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/nebulaglass/nebula-client/pkg/errors"
	"github.com/nebulaglass/nebula-client/pkg/logging"
)

// BackoffPolicy selects how the delay grows between attempts
type BackoffPolicy string

const (
	// BackoffExponential multiplies the delay by BackoffMultiplier each attempt
	BackoffExponential BackoffPolicy = "exponential"
	// BackoffLinear waits attempt × InitialDelay
	BackoffLinear BackoffPolicy = "linear"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first one
	MaxAttempts int
	// InitialDelay is the initial delay before the first retry
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// Backoff selects the delay growth, exponential by default
	Backoff BackoffPolicy
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
	// Jitter adds randomness to delay to avoid thundering herd
	Jitter bool
	// RetryableErrors is a function that determines if an error is retryable
	RetryableErrors func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		Backoff:           BackoffExponential,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableErrors:   DefaultRetryableErrors,
	}
}

// AnalysisRetryConfig is the policy for the long-running analysis call:
// every failure is retried, waiting 1×, 2×, ... base between attempts.
func AnalysisRetryConfig(attempts int, base time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    base,
		MaxDelay:        time.Duration(attempts) * base,
		Backoff:         BackoffLinear,
		RetryableErrors: RetryAll,
	}
}

// RetryAll treats every non-nil error as retryable
func RetryAll(err error) bool {
	return err != nil
}

// DefaultRetryableErrors determines if an error is retryable by default
func DefaultRetryableErrors(err error) bool {
	if err == nil {
		return false
	}

	// Check for specific error types that are retryable
	if errors.IsType(err, errors.ErrorTypeTimeout) ||
		errors.IsType(err, errors.ErrorTypeExternal) ||
		errors.IsType(err, errors.ErrorTypeAddress) {
		return true
	}

	// Check for client errors (not retryable)
	if errors.IsType(err, errors.ErrorTypeValidation) ||
		errors.IsType(err, errors.ErrorTypeAuthentication) ||
		errors.IsType(err, errors.ErrorTypeAuthorization) ||
		errors.IsType(err, errors.ErrorTypeNotFound) ||
		errors.IsType(err, errors.ErrorTypeConflict) {
		return false
	}

	return true
}

// Retrier handles retry logic with backoff
type Retrier struct {
	config RetryConfig
	logger *logging.Logger
}

// NewRetrier creates a new retrier with the given configuration
func NewRetrier(config RetryConfig) *Retrier {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Backoff == "" {
		config.Backoff = BackoffExponential
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.RetryableErrors == nil {
		config.RetryableErrors = DefaultRetryableErrors
	}

	return &Retrier{
		config: config,
		logger: logging.GetLogger(),
	}
}

// MaxAttempts reports the configured attempt bound
func (r *Retrier) MaxAttempts() int {
	return r.config.MaxAttempts
}

// Execute executes the given function with retry logic. The error returned
// after exhausting every attempt wraps the last failure.
func (r *Retrier) Execute(ctx context.Context, operation func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		// Check if context is cancelled
		if ctx.Err() != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			}
			return ctx.Err()
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.WithContext(ctx).WithField("attempt", attempt).Info("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		// Check if error is retryable
		if !r.config.RetryableErrors(err) {
			r.logger.Debug("Error is not retryable, stopping",
				"error", err.Error(),
				"attempt", attempt,
			)
			return err
		}

		// Don't retry on the last attempt
		if attempt == r.config.MaxAttempts {
			break
		}

		// Calculate delay
		delay := r.calculateDelay(attempt)

		r.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"error":        err.Error(),
			"attempt":      attempt,
			"max_attempts": r.config.MaxAttempts,
			"delay":        delay.String(),
		}).Debug("Operation failed, retrying")

		// Call retry callback if provided
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		// Wait before retry
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
			// Continue to next attempt
		}
	}

	r.logger.Debug("Operation failed after all retry attempts",
		"error", lastErr.Error(),
		"attempts", r.config.MaxAttempts,
	)

	return fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}

// ExecuteWithResult executes the given function with retry logic and returns a result
func ExecuteWithResult[T any](ctx context.Context, r *Retrier, operation func(context.Context) (T, error)) (T, error) {
	var result T
	err := r.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = operation(ctx)
		return err
	})
	return result, err
}

// calculateDelay returns the wait after the given failed attempt (1-based)
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	var delay float64
	switch r.config.Backoff {
	case BackoffLinear:
		delay = float64(r.config.InitialDelay) * float64(attempt)
	default:
		delay = float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	}

	// Apply maximum delay limit
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	// Add jitter if enabled
	if r.config.Jitter {
		jitter := rand.Float64() * 0.1 * delay // 10% jitter
		delay += jitter
	}

	return time.Duration(delay)
}
