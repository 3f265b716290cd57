package telemetry

// Histogram bucket definitions
var (
	// InMemoryOpBuckets for lock-bound in-process operations
	InMemoryOpBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}

	// PublishBuckets for sink round trips
	PublishBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// Write path metrics
var (
	// RecordsWrittenTotal counts appended records by stream
	RecordsWrittenTotal CounterVec = noopCounterVec{}

	// RecordsSkippedTotal counts writes not appended by stream and reason (existing, conflict)
	RecordsSkippedTotal CounterVec = noopCounterVec{}

	// RecordsPrunedTotal counts removed records by stream and trigger (date, id, put)
	RecordsPrunedTotal CounterVec = noopCounterVec{}

	// PutDurationSeconds measures Put latency by stream
	PutDurationSeconds HistogramVec = noopHistogramVec{}

	// IDFilterChecks counts id filter checks by path (fast, slow)
	IDFilterChecks CounterVec = noopCounterVec{}

	// IDFilterSize tracks fingerprints in the most recently updated id filter
	IDFilterSize Gauge = NoopStat{}
)

// Handling metrics
var (
	// TryHandleTotal counts claim attempts by stream and result (claimed, empty)
	TryHandleTotal CounterVec = noopCounterVec{}

	// TryHandleBlockedSkips counts partitions skipped because the gate was closed
	TryHandleBlockedSkips CounterVec = noopCounterVec{}

	// HandlingTransitionsTotal counts appended handling entries by stream and status
	HandlingTransitionsTotal CounterVec = noopCounterVec{}

	// BlockedPartitions tracks closed gates by stream
	BlockedPartitions GaugeVec = noopGaugeVec{}
)

// Sampled stream metrics
var (
	// StreamRecords tracks live records by stream
	StreamRecords GaugeVec = noopGaugeVec{}

	// StreamHandlingEntries tracks live handling entries by stream
	StreamHandlingEntries GaugeVec = noopGaugeVec{}

	// NotifySubscribers tracks active change subscriptions
	NotifySubscribers Gauge = NoopStat{}
)

// Change feed metrics
var (
	// FeedEventsAppendedTotal counts events written to the publish log
	FeedEventsAppendedTotal Counter = NoopStat{}

	// FeedEventsPublishedTotal counts events delivered by sink
	FeedEventsPublishedTotal CounterVec = noopCounterVec{}

	// FeedPublishFailuresTotal counts failed publish attempts by sink
	FeedPublishFailuresTotal CounterVec = noopCounterVec{}

	// FeedPublishSeconds measures sink publish latency by sink
	FeedPublishSeconds HistogramVec = noopHistogramVec{}
)

// InitMetrics creates the Prometheus metrics. Call after InitializeTelemetry.
func InitMetrics() {
	RecordsWrittenTotal = NewCounterVec(
		"records_written_total",
		"Records appended",
		[]string{"stream"},
	)
	RecordsSkippedTotal = NewCounterVec(
		"records_skipped_total",
		"Writes not appended because a prior record matched",
		[]string{"stream", "reason"},
	)
	RecordsPrunedTotal = NewCounterVec(
		"records_pruned_total",
		"Records removed",
		[]string{"stream", "trigger"},
	)
	PutDurationSeconds = NewHistogramVec(
		"put_duration_seconds",
		"Put duration in seconds",
		[]string{"stream"},
		InMemoryOpBuckets,
	)
	IDFilterChecks = NewCounterVec(
		"id_filter_checks_total",
		"Id filter checks by path",
		[]string{"path"},
	)
	IDFilterSize = NewGauge(
		"id_filter_size",
		"Fingerprints in the most recently updated id filter",
	)

	TryHandleTotal = NewCounterVec(
		"try_handle_total",
		"TryHandle calls by result",
		[]string{"stream", "result"},
	)
	TryHandleBlockedSkips = NewCounterVec(
		"try_handle_blocked_skips_total",
		"Partitions skipped by TryHandle because they were blocked",
		[]string{"stream"},
	)
	HandlingTransitionsTotal = NewCounterVec(
		"handling_transitions_total",
		"Handling entries appended by status",
		[]string{"stream", "status"},
	)
	BlockedPartitions = NewGaugeVec(
		"blocked_partitions",
		"Partitions whose handling gate is closed",
		[]string{"stream"},
	)

	StreamRecords = NewGaugeVec(
		"stream_records",
		"Live records",
		[]string{"stream"},
	)
	StreamHandlingEntries = NewGaugeVec(
		"stream_handling_entries",
		"Live handling entries",
		[]string{"stream"},
	)
	NotifySubscribers = NewGauge(
		"notify_subscribers",
		"Active change subscriptions",
	)

	FeedEventsAppendedTotal = NewCounter(
		"feed_events_appended_total",
		"Events written to the publish log",
	)
	FeedEventsPublishedTotal = NewCounterVec(
		"feed_events_published_total",
		"Events delivered to a sink",
		[]string{"sink"},
	)
	FeedPublishFailuresTotal = NewCounterVec(
		"feed_publish_failures_total",
		"Failed publish attempts",
		[]string{"sink"},
	)
	FeedPublishSeconds = NewHistogramVec(
		"feed_publish_seconds",
		"Sink publish latency in seconds",
		[]string{"sink"},
		PublishBuckets,
	)
}
