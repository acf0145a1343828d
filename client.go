package photocluster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a resilient API client that layers per-attempt timeouts, retries
// with exponential backoff, interceptors, request de-duplication, optional
// circuit breaking and rate limiting, metrics and debug logging around the
// standard net/http Client. It is safe for concurrent use.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	defaultHeader     http.Header
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64
	timeout           time.Duration
	retryPolicy       RetryPolicy
	retryBudget       *RetryBudget
	circuitBreaker    *CircuitBreaker
	rateLimiter       *RateLimiter

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	metrics        *MetricsCollector
	debug          *DebugConfig
	logger         Logger
	deduplication  *DeduplicationTracker
	dedupKeyFunc   DeduplicationKeyFunc
	dedupCondition DeduplicationCondition

	// sleep is swapped out in tests for instant retries.
	sleep func(time.Duration)

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
// Calls on an invalid client fail with the validation error.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:        &http.Client{},
		defaultHeader:     http.Header{},
		maxRetries:        3,
		initialBackoff:    250 * time.Millisecond,
		maxBackoff:        10 * time.Second,
		backoffMultiplier: 2.0,
		jitter:            0,
		timeout:           30 * time.Second,
		debug:             DefaultDebugConfig(),
		dedupKeyFunc:      DefaultDeduplicationKeyFunc,
		dedupCondition:    DefaultDeduplicationCondition,
	}
	client.defaultHeader.Set("User-Agent", "photocluster/"+Version)

	for _, option := range options {
		option(client)
	}

	if client.retryPolicy == nil {
		client.retryPolicy = NewDefaultRetryPolicy(
			client.maxRetries, client.initialBackoff, client.maxBackoff,
			client.backoffMultiplier, client.jitter)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Get performs a GET request and decodes the JSON response into v (may be nil).
func (c *Client) Get(ctx context.Context, path string, v any) error {
	return c.DoJSON(ctx, RequestDescriptor{Method: http.MethodGet, Path: path}, v)
}

// Post performs a POST request with a JSON body and decodes the response into v.
func (c *Client) Post(ctx context.Context, path string, body, v any) error {
	return c.DoJSON(ctx, RequestDescriptor{Method: http.MethodPost, Path: path, Body: body}, v)
}

// Put performs a PUT request with a JSON body and decodes the response into v.
func (c *Client) Put(ctx context.Context, path string, body, v any) error {
	return c.DoJSON(ctx, RequestDescriptor{Method: http.MethodPut, Path: path, Body: body}, v)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.DoJSON(ctx, RequestDescriptor{Method: http.MethodDelete, Path: path}, nil)
}

// DoJSON executes the call and decodes a successful response body into v.
// A nil v or an empty body skips decoding.
func (c *Client) DoJSON(ctx context.Context, desc RequestDescriptor, v any) error {
	resp, err := c.Do(ctx, desc)
	if err != nil {
		return err
	}
	if v == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.JSON(v)
}

// Do executes one logical call: defaults are merged into the descriptor,
// request interceptors run once, then the attempt loop dispatches with a
// per-attempt timeout until the outcome is terminal. Response interceptors
// see the final response before classification. Non-2xx outcomes are
// returned as *Error.
func (c *Client) Do(ctx context.Context, desc RequestDescriptor) (*Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	start := time.Now()
	d := c.applyDefaults(desc)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, &d); err != nil {
			return nil, err
		}
	}

	spec, err := c.resolve(d)
	if err != nil {
		return nil, err
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting request", "requestID", requestID, "method", spec.method, "url", spec.url, "endpoint", spec.endpoint)
	}

	dedupEnabled := c.deduplication != nil && c.dedupCondition != nil && c.dedupCondition(spec.method)

	var dedupKey string
	var dedupEntry *DeduplicationEntry
	var isDedupOwner bool
	if dedupEnabled {
		dedupKey = c.dedupKeyFunc(spec.method, spec.url, spec.body)
		dedupEntry, isDedupOwner = c.deduplication.GetOrCreateEntry(dedupKey)

		if !isDedupOwner {
			resp, err := dedupEntry.Wait(ctx)
			duration := time.Since(start)

			statusCode := 0
			if resp != nil {
				statusCode = resp.StatusCode
			}
			c.metrics.RecordRequest(spec.method, spec.endpoint, statusCode, duration)
			c.metrics.RecordDeduplicationHit(spec.method, spec.endpoint)

			if c.debug != nil && c.debug.Enabled && c.logger != nil {
				c.logger.Debug("Deduplication hit", "requestID", requestID, "dedupKey", dedupKey)
			}

			return resp, err
		}

		if c.debug != nil && c.debug.Enabled && c.logger != nil {
			c.logger.Debug("Deduplication miss - proceeding with request", "requestID", requestID, "dedupKey", dedupKey)
		}
	}

	c.metrics.RecordRequestStart(spec.method, spec.endpoint)

	policy := c.retryPolicy
	if desc.Retries != nil || desc.RetryDelay > 0 {
		// Per-call overrides rebuild the default policy around the merged
		// numbers; a custom client-level policy still applies otherwise.
		policy = NewDefaultRetryPolicy(spec.retries, spec.retryDelay, c.maxBackoff, c.backoffMultiplier, c.jitter)
	}

	resp, attempts, err := c.doWithRetry(ctx, spec, policy, 0, requestID, start)

	if err == nil && resp != nil {
		for _, interceptor := range c.responseInterceptors {
			if ierr := interceptor(ctx, resp); ierr != nil {
				err = ierr
				resp = nil
				break
			}
		}
	}

	if err == nil && resp != nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		e := errorFromResponse(resp.StatusCode, resp.Body)
		e.Attempt = attempts
		err = c.enrich(e, spec, requestID, start)
		c.metrics.RecordError(string(e.Type), spec.method, spec.endpoint)
		resp = nil
	}

	c.metrics.RecordRequestEnd(spec.method, spec.endpoint)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	} else if code := StatusCodeOf(err); code > 0 {
		statusCode = code
	}
	c.metrics.RecordRequest(spec.method, spec.endpoint, statusCode, time.Since(start))

	if dedupEnabled && isDedupOwner && dedupEntry != nil {
		c.deduplication.Complete(dedupKey, resp, err)
	}

	return resp, err
}

// doWithRetry runs one attempt and recurses after a backoff wait while the
// policy allows. It returns the final received response (any status) or a
// typed error, plus the index of the last attempt.
func (c *Client) doWithRetry(ctx context.Context, spec *callSpec, policy RetryPolicy, attempt int, requestID string, start time.Time) (*Response, int, error) {
	if c.rateLimiter != nil {
		if !c.rateLimiter.Allow() {
			if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
				c.logger.Warn("Rate limit exceeded", "requestID", requestID, "endpoint", spec.endpoint)
			}
			c.metrics.RecordError(string(ErrorTypeRateLimit), spec.method, spec.endpoint)
			e := &Error{Type: ErrorTypeRateLimit, Message: "rate limit exceeded", Cause: ErrRateLimited, Attempt: attempt}
			return nil, attempt, c.enrich(e, spec, requestID, start)
		}
		c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.Tokens())
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		if c.debug != nil && c.debug.Enabled && c.debug.LogCircuit && c.logger != nil {
			c.logger.Warn("Circuit breaker open", "requestID", requestID, "endpoint", spec.endpoint)
		}
		c.metrics.RecordError(string(ErrorTypeCircuitOpen), spec.method, spec.endpoint)
		e := &Error{Type: ErrorTypeCircuitOpen, Message: "circuit breaker is open", Cause: ErrCircuitOpen, Attempt: attempt}
		return nil, attempt, c.enrich(e, spec, requestID, start)
	}

	if attempt > 0 {
		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("Retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", spec.retries, "endpoint", spec.endpoint)
		}
		c.metrics.RecordRetry(spec.method, spec.endpoint, attempt)
	}

	resp, rawErr := c.executeAttempt(ctx, spec)

	if c.circuitBreaker != nil {
		if rawErr != nil || resp.StatusCode >= 500 {
			c.circuitBreaker.RecordFailure()
		} else {
			c.circuitBreaker.RecordSuccess()
		}
		c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
	}

	var typed *Error
	if rawErr != nil {
		typed = c.classifyTransport(rawErr, spec)
		typed.Attempt = attempt
		c.metrics.RecordError(string(typed.Type), spec.method, spec.endpoint)
	}

	if attempt < spec.retries {
		var delay time.Duration
		var retry bool
		if typed != nil {
			delay, retry = policy.ShouldRetry(nil, typed, attempt)
		} else {
			delay, retry = policy.ShouldRetry(resp, nil, attempt)
		}

		if retry {
			if c.retryBudget != nil && !c.retryBudget.Allow() {
				c.metrics.RecordRetryBudgetExceeded(spec.endpoint)
				if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
					c.logger.Warn("Retry budget exceeded", "requestID", requestID, "endpoint", spec.endpoint)
				}
				e := &Error{Type: ErrorTypeRetryBudget, Message: "retry budget exceeded", Cause: ErrRetryBudgetExceeded, Attempt: attempt}
				return nil, attempt, c.enrich(e, spec, requestID, start)
			}

			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", delay, "endpoint", spec.endpoint)
			}

			if werr := c.wait(ctx, delay); werr != nil {
				e := &Error{Type: ErrorTypeNetwork, Message: "canceled while waiting to retry", Cause: werr, Attempt: attempt}
				return nil, attempt, c.enrich(e, spec, requestID, start)
			}
			return c.doWithRetry(ctx, spec, policy, attempt+1, requestID, start)
		}
	}

	if typed != nil {
		return nil, attempt, c.enrich(typed, spec, requestID, start)
	}
	return resp, attempt, nil
}

// executeAttempt dispatches a single HTTP request bounded by the per-attempt
// timeout and materializes the response. The raw transport error is returned
// unclassified.
func (c *Client) executeAttempt(ctx context.Context, spec *callSpec) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, spec.timeout)
	defer cancel()

	var bodyReader io.Reader
	if spec.body != nil {
		bodyReader = bytes.NewReader(spec.body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, spec.method, spec.url, bodyReader)
	if err != nil {
		return nil, &Error{Type: ErrorTypeValidation, Message: "building request", Cause: err}
	}
	req.Header = spec.header.Clone()

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

// classifyTransport maps a transport-level failure to the error taxonomy.
// Deadline expiry is a terminal timeout; cancellation and everything else is
// a network failure with the cause preserved for errors.Is checks.
func (c *Client) classifyTransport(err error, spec *callSpec) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{
			Type:    ErrorTypeTimeout,
			Message: fmt.Sprintf("request timed out after %v", spec.timeout),
			Cause:   err,
		}
	case errors.Is(err, context.Canceled):
		return &Error{Type: ErrorTypeNetwork, Message: "request canceled", Cause: err}
	default:
		return &Error{Type: ErrorTypeNetwork, Message: "network request failed", Cause: err}
	}
}

// wait sleeps for the backoff delay, aborting early if the parent context is
// done.
func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		c.sleep(d)
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) enrich(e *Error, spec *callSpec, requestID string, start time.Time) *Error {
	e.RequestID = requestID
	e.Method = spec.method
	e.URL = spec.url
	e.Endpoint = spec.endpoint
	e.MaxRetries = spec.retries
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Duration = time.Since(start)
	return e
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}
