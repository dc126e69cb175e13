package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus descriptors exposed on /metrics. All
// metrics live on a dedicated registry rather than the global one, so
// this package never collides with another instrumented library sharing
// the process.
type Metrics struct {
	registry *prometheus.Registry

	EventsSubmittedTotal *prometheus.CounterVec
	QueueDepth           prometheus.Gauge
	DiagnosisDuration    prometheus.Histogram
	DiagnosesTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers every trace2pass HTTP metric.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		EventsSubmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trace2pass",
			Subsystem: "events",
			Name:      "submitted_total",
			Help:      "Total anomaly events submitted, by resulting status.",
		}, []string{"status"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trace2pass",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of bug records currently queueable (new or triaged).",
		}),

		DiagnosisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trace2pass",
			Subsystem: "pipeline",
			Name:      "diagnosis_duration_seconds",
			Help:      "Wall-clock duration of a single fingerprint's C3/C4/C5 run.",
			Buckets:   prometheus.DefBuckets,
		}),

		DiagnosesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trace2pass",
			Subsystem: "pipeline",
			Name:      "diagnoses_total",
			Help:      "Total diagnosis runs completed, by terminal verdict.",
		}, []string{"verdict"}),
	}

	reg.MustRegister(
		m.EventsSubmittedTotal,
		m.QueueDepth,
		m.DiagnosisDuration,
		m.DiagnosesTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// ObserveDiagnosis records one completed pipeline run.
func (m *Metrics) ObserveDiagnosis(verdict string, d time.Duration) {
	m.DiagnosisDuration.Observe(d.Seconds())
	m.DiagnosesTotal.WithLabelValues(verdict).Inc()
}
