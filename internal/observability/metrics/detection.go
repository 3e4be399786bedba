package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type DetectionMetrics struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	runsInFlight      prometheus.Gauge
	findingsTotal     *prometheus.CounterVec
	contextClauses    *prometheus.HistogramVec
	droppedClauseRefs *prometheus.CounterVec
	embeddedClauses   *prometheus.CounterVec
}

func NewDetectionMetrics(service string) *DetectionMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leakage",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total detection runs by status and degraded flag.",
		},
		[]string{"service", "status", "degraded"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leakage",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Detection run duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "leakage",
			Subsystem: "engine",
			Name:      "runs_in_flight",
			Help:      "Number of in-flight detection runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	findingsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leakage",
			Subsystem: "engine",
			Name:      "findings_total",
			Help:      "Total reconciled findings by detection method and severity.",
		},
		[]string{"service", "method", "severity"},
	)
	contextClauses := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leakage",
			Subsystem: "rag",
			Name:      "context_clauses",
			Help:      "Distribution of clauses in the assembled model context.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 15},
		},
		[]string{"service"},
	)
	droppedClauseRefs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leakage",
			Subsystem: "rag",
			Name:      "dropped_clause_refs_total",
			Help:      "Total model clause references dropped for not being in context.",
		},
		[]string{"service"},
	)
	embeddedClauses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leakage",
			Subsystem: "rag",
			Name:      "embedded_clauses_total",
			Help:      "Total clauses newly embedded and indexed.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		runsTotal,
		runDuration,
		runsInFlight,
		findingsTotal,
		contextClauses,
		droppedClauseRefs,
		embeddedClauses,
	)

	return &DetectionMetrics{
		registry:          registry,
		runsTotal:         runsTotal,
		runDuration:       runDuration,
		runsInFlight:      runsInFlight,
		findingsTotal:     findingsTotal,
		contextClauses:    contextClauses,
		droppedClauseRefs: droppedClauseRefs,
		embeddedClauses:   embeddedClauses,
	}
}

func (m *DetectionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *DetectionMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *DetectionMetrics) FinishRun(service string, duration time.Duration, degraded bool, err error) {
	m.runsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(service, status, strconv.FormatBool(degraded)).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *DetectionMetrics) RecordFinding(service, method, severity string) {
	if method == "" {
		method = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}
	m.findingsTotal.WithLabelValues(service, method, severity).Inc()
}

func (m *DetectionMetrics) ObserveContextSize(service string, clauses int) {
	m.contextClauses.WithLabelValues(service).Observe(float64(clauses))
}

func (m *DetectionMetrics) RecordDroppedClauseRefs(service string, count int) {
	if count <= 0 {
		return
	}
	m.droppedClauseRefs.WithLabelValues(service).Add(float64(count))
}

func (m *DetectionMetrics) RecordEmbeddedClauses(service string, count int) {
	if count <= 0 {
		return
	}
	m.embeddedClauses.WithLabelValues(service).Add(float64(count))
}
