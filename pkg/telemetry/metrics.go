// Package telemetry exposes the observability hooks for the gateway client:
// Prometheus metrics covering connection lifecycle and dispatch, and an
// OpenTelemetry span around every event fan-out.
//
// Metrics are opt-in: nothing is registered until [EnableMetrics] is called,
// and every Record function is a no-op before then. This keeps the library
// silent for embedders that bring their own metrics.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures metric registration.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "kgate").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// RTTBuckets are the histogram buckets for heartbeat round-trip time.
	RTTBuckets []float64
}

// MetricsOption configures metric registration.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = namespace }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) { c.ConstLabels = labels }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = registry }
}

// WithRTTBuckets sets the heartbeat RTT histogram buckets.
func WithRTTBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) { c.RTTBuckets = buckets }
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:  "kgate",
		Registry:   prometheus.DefaultRegisterer,
		RTTBuckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}
}

// metrics holds the registered collectors.
type metrics struct {
	framesTotal      *prometheus.CounterVec
	decodeErrors     prometheus.Counter
	reconnectsTotal  prometheus.Counter
	dispatchedTotal  *prometheus.CounterVec
	duplicatesTotal  prometheus.Counter
	connectionState  prometheus.Gauge
	heartbeatRTT     prometheus.Histogram
	resumeFailsTotal prometheus.Counter
}

var (
	globalMetrics *metrics
	globalOnce    sync.Once
)

// EnableMetrics registers the gateway metrics. Safe to call more than once;
// only the first call registers.
func EnableMetrics(opts ...MetricsOption) {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	globalOnce.Do(func() {
		globalMetrics = initMetrics(config)
	})
}

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_total",
			Help:        "Total inbound gateway frames by opcode",
			ConstLabels: config.ConstLabels,
		}, []string{"opcode"}),

		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frame_decode_errors_total",
			Help:        "Total inbound frames dropped for decode or decrypt failures",
			ConstLabels: config.ConstLabels,
		}),

		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "reconnects_total",
			Help:        "Total reconnect attempts scheduled",
			ConstLabels: config.ConstLabels,
		}),

		dispatchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "events_dispatched_total",
			Help:        "Total events dispatched by name",
			ConstLabels: config.ConstLabels,
		}, []string{"name"}),

		duplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "duplicate_events_total",
			Help:        "Total redelivered events dropped by the dedup window",
			ConstLabels: config.ConstLabels,
		}),

		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "connection_state",
			Help:        "Current session state (0 initial, 1 pulling, 2 connecting, 3 open, 4 closed, 5 reconnecting)",
			ConstLabels: config.ConstLabels,
		}),

		heartbeatRTT: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "heartbeat_rtt_seconds",
			Help:        "Heartbeat ping to pong round-trip time",
			ConstLabels: config.ConstLabels,
			Buckets:     config.RTTBuckets,
		}),

		resumeFailsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "resume_failures_total",
			Help:        "Total server-side resume rejections (session identity dropped)",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// RecordFrame counts one inbound frame by opcode name.
func RecordFrame(opcode string) {
	if globalMetrics != nil {
		globalMetrics.framesTotal.WithLabelValues(opcode).Inc()
	}
}

// RecordDecodeError counts one dropped inbound frame.
func RecordDecodeError() {
	if globalMetrics != nil {
		globalMetrics.decodeErrors.Inc()
	}
}

// RecordReconnect counts one scheduled reconnect attempt.
func RecordReconnect() {
	if globalMetrics != nil {
		globalMetrics.reconnectsTotal.Inc()
	}
}

// RecordDispatch counts one dispatched event.
func RecordDispatch(name string) {
	if globalMetrics != nil {
		globalMetrics.dispatchedTotal.WithLabelValues(name).Inc()
	}
}

// RecordDuplicate counts one dropped duplicate event.
func RecordDuplicate() {
	if globalMetrics != nil {
		globalMetrics.duplicatesTotal.Inc()
	}
}

// RecordState publishes the current session state.
func RecordState(state int) {
	if globalMetrics != nil {
		globalMetrics.connectionState.Set(float64(state))
	}
}

// RecordHeartbeatRTT observes one ping/pong round trip.
func RecordHeartbeatRTT(seconds float64) {
	if globalMetrics != nil {
		globalMetrics.heartbeatRTT.Observe(seconds)
	}
}

// RecordResumeFailure counts one server-side resume rejection.
func RecordResumeFailure() {
	if globalMetrics != nil {
		globalMetrics.resumeFailsTotal.Inc()
	}
}
