package infra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "firmlens"

// durationBuckets are histogram buckets for round-trip durations (seconds).
var durationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	IngestRunsTotal    *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
	IngestWritesTotal  *prometheus.CounterVec
	StoreOpDuration    *prometheus.HistogramVec
	ChatRequestsTotal  *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	BreakerState       *prometheus.GaugeVec
}

// NewMetrics creates and registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		IngestRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "runs_total",
				Help:      "Total number of ingestion runs by outcome",
			},
			[]string{"status"},
		),
		IngestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "duration_seconds",
				Help:      "Duration of ingestion runs in seconds",
				Buckets:   durationBuckets,
			},
		),
		IngestWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "writes_total",
				Help:      "Total number of upserts applied by record kind",
			},
			[]string{"kind"},
		),
		StoreOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of graph store operations in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"operation", "status"},
		),
		ChatRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "chat",
				Name:      "requests_total",
				Help:      "Total number of chat requests by outcome",
			},
			[]string{"outcome"},
		),
		CompletionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "completion_duration_seconds",
				Help:      "Duration of text-completion calls in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"status"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordIngest records one finished ingestion run.
func (m *Metrics) RecordIngest(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.IngestRunsTotal.WithLabelValues(status(err)).Inc()
	m.IngestDuration.Observe(d.Seconds())
}

// AddIngestWrites counts applied upserts of one record kind.
func (m *Metrics) AddIngestWrites(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestWritesTotal.WithLabelValues(kind).Add(float64(n))
}

// ObserveStoreOp records the duration of one graph store operation.
func (m *Metrics) ObserveStoreOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

// RecordChat counts one chat request by outcome ("ok" or an error tag).
func (m *Metrics) RecordChat(outcome string) {
	if m == nil {
		return
	}
	m.ChatRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records the duration of one completion call.
func (m *Metrics) ObserveCompletion(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CompletionDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}

// SetBreakerState publishes a breaker state.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
