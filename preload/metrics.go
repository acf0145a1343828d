package preload

// Metrics receives preloader activity. The client package's MetricsCollector
// satisfies it; NoopMetrics is used when none is configured.
type Metrics interface {
	RecordPreloadScheduled()
	RecordPreloadSettled(status string)
	RecordPreloadQueueDepth(n int)
	RecordPreloadActive(n int)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordPreloadScheduled()            {}
func (NoopMetrics) RecordPreloadSettled(status string) {}
func (NoopMetrics) RecordPreloadQueueDepth(n int)      {}
func (NoopMetrics) RecordPreloadActive(n int)          {}
