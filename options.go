package photocluster

import (
	"fmt"
	"net/http"
	"time"
)

// WithBaseURL sets the API origin that relative request paths resolve against.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHeader sets a default header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.defaultHeader.Set(key, value)
	}
}

// WithMaxRetries sets the maximum number of retry attempts
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithInitialBackoff sets the delay before the first retry
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithMaxBackoff sets the maximum backoff duration
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithBackoffMultiplier sets the backoff multiplier
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.backoffMultiplier = f
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0)
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithRetryPolicy replaces the default retry decision logic.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithRetryBudget caps retries across all calls within a sliding window.
func WithRetryBudget(maxRetries int, perWindow time.Duration) Option {
	return func(c *Client) {
		c.retryBudget = NewRetryBudget(maxRetries, perWindow)
	}
}

// WithRateLimiter enables a client-wide token bucket
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithCircuitBreaker enables circuit breaking with the given configuration
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRequestInterceptor appends request interceptors; they run in
// registration order once per logical call.
func WithRequestInterceptor(interceptors ...RequestInterceptor) Option {
	return func(c *Client) {
		c.requestInterceptors = append(c.requestInterceptors, interceptors...)
	}
}

// WithResponseInterceptor appends response interceptors; they run in
// registration order on the final response.
func WithResponseInterceptor(interceptors ...ResponseInterceptor) Option {
	return func(c *Client) {
		c.responseInterceptors = append(c.responseInterceptors, interceptors...)
	}
}

// WithHTTPClient sets a custom HTTP client. Leave its Timeout zero: the
// per-attempt timeout from the descriptor bounds each dispatch.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithDeduplication enables coalescing of concurrent identical calls
func WithDeduplication() Option {
	return func(c *Client) {
		c.deduplication = NewDeduplicationTracker()
	}
}

// WithDeduplicationKeyFunc sets a custom deduplication key function
func WithDeduplicationKeyFunc(fn DeduplicationKeyFunc) Option {
	return func(c *Client) {
		c.dedupKeyFunc = fn
	}
}

// WithDeduplicationCondition sets a custom deduplication condition function
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithSleepFunc replaces the backoff sleep, letting tests retry instantly.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error if invalid
func (c *Client) ValidateConfiguration() error {
	var errs []string

	errs = append(errs, c.validateRetryConfig()...)
	errs = append(errs, c.validateRateLimiterConfig()...)
	errs = append(errs, c.validateCircuitBreakerConfig()...)
	errs = append(errs, c.validateDebugConfig()...)
	errs = append(errs, c.validateDeduplicationConfig()...)
	errs = append(errs, c.validateInterceptorConfig()...)
	errs = append(errs, c.validateHTTPClientConfig()...)
	errs = append(errs, c.validateExtremeValues()...)

	if len(errs) > 0 {
		return &Error{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errs),
		}
	}

	return nil
}

// validateRetryConfig validates retry-related configuration
func (c *Client) validateRetryConfig() []string {
	var errs []string

	if c.maxRetries < 0 {
		errs = append(errs, "maxRetries must be non-negative")
	}

	if c.initialBackoff <= 0 {
		errs = append(errs, "initialBackoff must be positive")
	}

	if c.maxBackoff < c.initialBackoff {
		errs = append(errs, "maxBackoff must be greater than or equal to initialBackoff")
	}

	if c.backoffMultiplier <= 0 {
		errs = append(errs, "backoffMultiplier must be positive")
	}

	if c.jitter < 0 || c.jitter > 1 {
		errs = append(errs, "jitter must be between 0 and 1")
	}

	if c.timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	return errs
}

// validateRateLimiterConfig validates rate limiter configuration
func (c *Client) validateRateLimiterConfig() []string {
	var errs []string

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens <= 0 {
			errs = append(errs, "rateLimiter maxTokens must be positive")
		}
		if c.rateLimiter.refillRate <= 0 {
			errs = append(errs, "rateLimiter refillRate must be positive")
		}
	}

	return errs
}

// validateCircuitBreakerConfig validates circuit breaker configuration
func (c *Client) validateCircuitBreakerConfig() []string {
	var errs []string

	if c.circuitBreaker != nil {
		if c.circuitBreaker.config.FailureThreshold <= 0 {
			errs = append(errs, "circuitBreaker FailureThreshold must be positive")
		}
		if c.circuitBreaker.config.RecoveryTimeout <= 0 {
			errs = append(errs, "circuitBreaker RecoveryTimeout must be positive")
		}
		if c.circuitBreaker.config.SuccessThreshold <= 0 {
			errs = append(errs, "circuitBreaker SuccessThreshold must be positive")
		}
	}

	return errs
}

// validateDebugConfig validates debug configuration
func (c *Client) validateDebugConfig() []string {
	var errs []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errs = append(errs, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errs = append(errs, "logger must be set when debug is enabled")
		}
	}

	return errs
}

// validateDeduplicationConfig validates deduplication configuration
func (c *Client) validateDeduplicationConfig() []string {
	var errs []string

	if c.deduplication != nil {
		if c.dedupKeyFunc == nil {
			errs = append(errs, "deduplication key function must be set when deduplication is enabled")
		}
		if c.dedupCondition == nil {
			errs = append(errs, "deduplication condition must be set when deduplication is enabled")
		}
	}

	return errs
}

// validateInterceptorConfig validates interceptor configuration
func (c *Client) validateInterceptorConfig() []string {
	var errs []string

	for i, interceptor := range c.requestInterceptors {
		if interceptor == nil {
			errs = append(errs, fmt.Sprintf("requestInterceptors[%d] cannot be nil", i))
		}
	}
	for i, interceptor := range c.responseInterceptors {
		if interceptor == nil {
			errs = append(errs, fmt.Sprintf("responseInterceptors[%d] cannot be nil", i))
		}
	}

	return errs
}

// validateHTTPClientConfig validates HTTP client configuration
func (c *Client) validateHTTPClientConfig() []string {
	var errs []string

	if c.httpClient == nil {
		errs = append(errs, "HTTP client cannot be nil")
	}

	return errs
}

// validateExtremeValues validates that configuration values are within
// reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errs []string

	if c.maxRetries > 100 {
		errs = append(errs, "maxRetries > 100 may cause excessive resource usage")
	}

	if c.initialBackoff > 10*time.Minute {
		errs = append(errs, "initialBackoff > 10m may cause very long delays")
	}
	if c.maxBackoff > time.Hour {
		errs = append(errs, "maxBackoff > 1h may cause extremely long delays")
	}

	if c.timeout > 10*time.Minute {
		errs = append(errs, "timeout > 10m may cause requests to hang for too long")
	}

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens > 1000000 {
			errs = append(errs, "rateLimiter maxTokens > 1M may cause memory issues")
		}
		if c.rateLimiter.refillRate > 0 && c.rateLimiter.refillRate < time.Millisecond {
			errs = append(errs, "rateLimiter refillRate < 1ms may cause excessive CPU usage")
		}
	}

	return errs
}
