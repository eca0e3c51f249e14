package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeAuthorization  ErrorType = "authorization"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeExternal       ErrorType = "external"
	ErrorTypeTimeout        ErrorType = "timeout"

	// ErrorTypeAddress marks failures where no usable answer came back from a
	// candidate base address.
	ErrorTypeAddress ErrorType = "address"
	// ErrorTypeApplication marks any other non-2xx answer from the backend.
	ErrorTypeApplication ErrorType = "application"
)

const (
	// MessageUnreachable is shown when every candidate address failed.
	MessageUnreachable = "Unable to reach API. Check backend and NEBULA_API_URL."
	// MessageUnexpected is shown for failures without a structured detail.
	MessageUnexpected = "Unexpected error. Please try again."
)

// AppError represents an application error with context
type AppError struct {
	Type       ErrorType         `json:"type"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	StatusCode int               `json:"status_code,omitempty"`
	Detail     string            `json:"detail,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	RequestID  string            `json:"request_id"`
	Timestamp  time.Time         `json:"timestamp"`
	Cause      error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Details:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithRequestID adds a request ID to the error
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// WithStatus records the HTTP status the error was built from
func (e *AppError) WithStatus(statusCode int) *AppError {
	e.StatusCode = statusCode
	return e
}

// Common error constructors
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, "VALIDATION_ERROR", message)
}

func NewAuthenticationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthentication, "AUTHENTICATION_ERROR", message)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

func NewExternalError(service, message string) *AppError {
	return NewAppError(ErrorTypeExternal, "EXTERNAL_SERVICE_ERROR", message).
		WithDetail("service", service)
}

func NewTimeoutError(operation string) *AppError {
	return NewAppError(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s timed out", operation))
}

// NewUnreachableError reports that baseURL produced no response at all.
func NewUnreachableError(baseURL string, cause error) *AppError {
	return NewAppError(ErrorTypeAddress, "UNREACHABLE", "no response from backend").
		WithDetail("base_url", baseURL).
		WithCause(cause)
}

// NewAddressTimeoutError reports that baseURL did not answer before the
// request deadline. It is still an address-level failure.
func NewAddressTimeoutError(baseURL string, timeout time.Duration, cause error) *AppError {
	return NewAppError(ErrorTypeAddress, "TIMEOUT", fmt.Sprintf("no response within %v", timeout)).
		WithDetail("base_url", baseURL).
		WithCause(cause)
}

// FromResponse converts a non-2xx response into an AppError, keeping the
// structured detail message from the body when there is one.
func FromResponse(statusCode int, body []byte) *AppError {
	message := http.StatusText(statusCode)
	if message == "" {
		message = "unexpected status"
	}

	appErr := NewAppError(typeForStatus(statusCode), fmt.Sprintf("HTTP_%d", statusCode), message).
		WithStatus(statusCode)
	appErr.Detail = ParseDetail(body)
	return appErr
}

func typeForStatus(statusCode int) ErrorType {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeValidation
	case http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case http.StatusForbidden:
		return ErrorTypeAuthorization
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case http.StatusBadGateway:
		return ErrorTypeAddress
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrorTypeExternal
	default:
		return ErrorTypeApplication
	}
}

// ParseDetail extracts the "detail" field of an error body. FastAPI emits
// either a string or a list of validation entries carrying "msg".
func ParseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.Msg != "" {
				msgs = append(msgs, entry.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	if string(envelope.Detail) == "null" {
		return ""
	}
	return string(envelope.Detail)
}

// UserMessage renders err for display, preferring the backend's detail.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return MessageUnexpected
	}
	if appErr.Detail != "" {
		return appErr.Detail
	}
	if appErr.Type == ErrorTypeAddress {
		return MessageUnreachable
	}
	// raised locally, not by a backend reply
	if appErr.StatusCode == 0 && appErr.Message != "" {
		return appErr.Message
	}
	return MessageUnexpected
}

// As finds the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetCode returns the error code if it's an AppError
func GetCode(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetType returns the error type if it's an AppError
func GetType(err error) ErrorType {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return 0
}
