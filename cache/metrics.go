package cache

// Metrics receives cache lifecycle events. The photocluster MetricsCollector
// satisfies it; NoopMetrics stands in when no collector is attached so the
// store never needs nil checks on the hot path.
type Metrics interface {
	// RecordCacheHit is called when a backend returns a live value.
	RecordCacheHit(backend string)

	// RecordCacheMiss is called when a key is absent or expired.
	RecordCacheMiss(backend string)

	// RecordCacheEviction is called when an entry is removed for a reason
	// other than an explicit delete: "capacity", "expired" or "corrupt".
	RecordCacheEviction(backend, reason string)

	// RecordCacheSize is called after mutations with the backend entry count.
	RecordCacheSize(backend string, size int)
}

// NoopMetrics ignores all metric events.
type NoopMetrics struct{}

func (NoopMetrics) RecordCacheHit(string)           {}
func (NoopMetrics) RecordCacheMiss(string)          {}
func (NoopMetrics) RecordCacheEviction(_, _ string) {}
func (NoopMetrics) RecordCacheSize(_ string, _ int) {}
