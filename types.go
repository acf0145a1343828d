package photocluster

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Option represents a configuration option
type Option func(*Client)

// Logger is the minimal structured logging interface used across the module.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DebugConfig controls diagnostic logging per concern.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	LogRateLimit bool
	LogCircuit   bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a config with all areas enabled once debug is
// switched on, using UUID request IDs.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogRateLimit: true,
		LogCircuit:   true,
		RequestIDGen: uuid.NewString,
	}
}

// RequestInterceptor transforms the outgoing descriptor before dispatch.
// Interceptors run in registration order, once per logical call; retries
// re-enter at the network call and do not re-run them. Returning an error
// aborts the call.
type RequestInterceptor func(ctx context.Context, d *RequestDescriptor) error

// ResponseInterceptor observes the materialized response after the final
// attempt settles, in registration order. Returning an error fails the call.
type ResponseInterceptor func(ctx context.Context, resp *Response) error

// Response is a fully-read HTTP response. The body is drained and the
// connection released before Response is handed to callers, so it can be
// shared between coalesced waiters and decoded repeatedly.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{
			Type:       ErrorTypeParse,
			Message:    "decoding response body",
			Cause:      err,
			StatusCode: r.StatusCode,
		}
	}
	return nil
}
