package metrics

import (
	"time"
)

// FeedMetrics holds the metrics of the status feed.
type FeedMetrics struct {
	registry  *Registry
	startedAt time.Time

	// Counters
	MessagesTotal     *Counter
	SessionsTotal     *Counter
	DisconnectsTotal  *Counter
	AcceptErrorsTotal *Counter
	SampleErrorsTotal *Counter

	// Gauges
	SessionActive *Gauge
	State         *Gauge
	Uptime        *Gauge

	// Histograms
	SampleDuration *Histogram
	WriteDuration  *Histogram
}

// NewFeedMetrics creates and registers all feed metrics. A nil registry
// gets a private one in the "imefeed" namespace.
func NewFeedMetrics(registry *Registry) *FeedMetrics {
	if registry == nil {
		registry = NewRegistry("imefeed")
	}

	return &FeedMetrics{
		registry:  registry,
		startedAt: time.Now(),

		MessagesTotal: registry.Counter(
			"messages_total",
			"Status lines written to consumers",
		),
		SessionsTotal: registry.Counter(
			"sessions_total",
			"Consumer sessions accepted",
		),
		DisconnectsTotal: registry.Counter(
			"disconnects_total",
			"Sessions ended by a failed write",
		),
		AcceptErrorsTotal: registry.Counter(
			"accept_errors_total",
			"Failed attempts to accept a consumer",
		),
		SampleErrorsTotal: registry.Counter(
			"sample_errors_total",
			"Input state queries that failed and were reported as off",
		),

		SessionActive: registry.Gauge(
			"session_active",
			"1 while a consumer is attached",
		),
		State: registry.Gauge(
			"state",
			"Broadcaster state (0 created, 1 listening, 2 streaming, 3 closed)",
		),
		Uptime: registry.Gauge(
			"uptime_seconds",
			"Seconds since the feed started",
		),

		SampleDuration: registry.Histogram(
			"sample_duration_seconds",
			"Time spent querying input state per tick",
			LatencyBuckets,
		),
		WriteDuration: registry.Histogram(
			"write_duration_seconds",
			"Time spent writing one status line",
			LatencyBuckets,
		),
	}
}

// Registry returns the underlying registry.
func (m *FeedMetrics) Registry() *Registry {
	return m.registry
}

// UpdateUptime refreshes the uptime gauge.
func (m *FeedMetrics) UpdateUptime() {
	m.Uptime.Set(int64(time.Since(m.startedAt).Seconds()))
}
