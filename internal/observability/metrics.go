// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	ObservationsReceived prometheus.Counter
	ObservationsStored   prometheus.Counter
	ValidationErrors     *prometheus.CounterVec
	FeedReconnects       prometheus.Counter
	ObservationBuffer    prometheus.Gauge
	HighestSlotSeen      prometheus.Gauge

	// Advisor metrics
	AdviceComputed   prometheus.Counter
	RebalanceSignals prometheus.Counter
	VolatilityScore  prometheus.Histogram
	EngineErrors     *prometheus.CounterVec
	AdvisorDuration  prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFlush  prometheus.Gauge
	LastSuccessfulAdvice prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "clmm_range_lab"
	}

	return &Metrics{
		// Ingestion metrics
		ObservationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_received_total",
			Help:      "Total number of feed price updates received",
		}),
		ObservationsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_stored_total",
			Help:      "Total number of price observations stored to database",
		}),
		ValidationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "validation_errors_total",
			Help:      "Total number of rejected feed updates by reason",
		}, []string{"reason"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_reconnects_total",
			Help:      "Total number of feed WebSocket reconnections",
		}),
		ObservationBuffer: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observation_buffer_size",
			Help:      "Current number of buffered observations awaiting flush",
		}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen on the feed",
		}),

		// Advisor metrics
		AdviceComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "advice_computed_total",
			Help:      "Total number of advice records computed",
		}),
		RebalanceSignals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "rebalance_signals_total",
			Help:      "Total number of advice records recommending a rebalance",
		}),
		VolatilityScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "volatility_score",
			Help:      "Distribution of computed volatility scores (0-10000)",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 6000, 8000, 9000, 10000},
		}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "engine_errors_total",
			Help:      "Total number of engine errors by type",
		}, []string{"error_type"}),
		AdvisorDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "run_duration_seconds",
			Help:      "Advisor run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulFlush: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_flush_timestamp",
			Help:      "Unix timestamp of last successful observation flush",
		}),
		LastSuccessfulAdvice: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_advice_timestamp",
			Help:      "Unix timestamp of last successful advisor run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordValidationError records a rejected feed update.
func (m *Metrics) RecordValidationError(reason string) {
	if m == nil {
		return
	}
	m.ValidationErrors.WithLabelValues(reason).Inc()
}

// RecordEngineError records an engine error by type.
func (m *Metrics) RecordEngineError(errorType string) {
	if m == nil {
		return
	}
	m.EngineErrors.WithLabelValues(errorType).Inc()
}
