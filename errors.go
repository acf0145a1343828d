package photocluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies a failed call. Classification drives retry eligibility
// and user-facing copy.
type ErrorType string

const (
	// ErrorTypeClient marks 4xx responses. Never retried.
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeServer marks 5xx responses. Retried up to the configured budget.
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeNetwork marks transport failures (DNS, connect, reset). Retried.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeTimeout marks per-attempt deadline expiry. Never retried.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeParse marks a 2xx response whose body failed to decode.
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeValidation marks invalid client configuration.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeRateLimit marks requests rejected by the local rate limiter.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCircuitOpen marks requests short-circuited by an open breaker.
	ErrorTypeCircuitOpen ErrorType = "circuit_open"
	// ErrorTypeRetryBudget marks retries suppressed by an exhausted budget.
	ErrorTypeRetryBudget ErrorType = "retry_budget"
)

// Sentinel errors for common failure scenarios
var (
	// ErrCircuitOpen is returned when the circuit breaker is in open state
	ErrCircuitOpen = errors.New("photocluster: circuit open")

	// ErrRateLimited is returned when a request is denied due to rate limiting
	ErrRateLimited = errors.New("photocluster: rate limited")

	// ErrRetryBudgetExceeded is returned when the retry budget is exhausted
	ErrRetryBudgetExceeded = errors.New("photocluster: retry budget exceeded")
)

// Error is the error type returned by the client. Type carries the
// classification, Code the machine-readable error_code from the API body when
// one was present, and the remaining fields diagnostic context.
type Error struct {
	Type       ErrorType
	Message    string
	Code       string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	StatusCode int
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// IsTransient reports whether an error might succeed on retry. True for
// network errors, 5xx responses, rate limiting and open circuits; false for
// 4xx (except 429), timeouts, parse and validation failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRetryBudgetExceeded) {
		return true
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Type {
		case ErrorTypeNetwork, ErrorTypeServer, ErrorTypeRateLimit, ErrorTypeCircuitOpen, ErrorTypeRetryBudget:
			return true
		case ErrorTypeClient:
			return e.StatusCode == http.StatusTooManyRequests
		default:
			return false
		}
	}

	return false
}

// Error implements error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *Error) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.Code != "" {
		info += fmt.Sprintf("Code: %s\n", e.Code)
	}
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// apiErrorBody is the structured error envelope the Photo-cluster backend
// returns on failure responses.
type apiErrorBody struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
}

// errorFromResponse classifies a non-2xx response. The structured body
// {detail, error_code} supplies message and code when present; otherwise the
// message is synthesized from the status line.
func errorFromResponse(statusCode int, body []byte) *Error {
	e := &Error{
		StatusCode: statusCode,
		Timestamp:  time.Now(),
	}
	if statusCode >= 500 {
		e.Type = ErrorTypeServer
	} else {
		e.Type = ErrorTypeClient
	}

	var payload apiErrorBody
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil && payload.Detail != "" {
		e.Message = payload.Detail
		e.Code = payload.ErrorCode
		return e
	}

	e.Message = fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode))
	return e
}

// StatusCodeOf extracts the HTTP status code from an error chain, or 0.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// CodeOf extracts the machine error code from an error chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
