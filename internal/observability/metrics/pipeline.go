// Package metrics exposes the Prometheus instrumentation for pipeline runs.
// A custom registry keeps the scrape surface to exactly what this service
// owns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes reported to the runs_total counter.
const (
	OutcomeCompleted       = "completed"
	OutcomeFailed          = "failed"
	OutcomeNoRelevantPages = "no_relevant_pages"
	OutcomeNoFindings      = "no_findings"
)

type PipelineMetrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.ObserverVec
	stageTotal    *prometheus.CounterVec
	stageDuration prometheus.ObserverVec
	runsInFlight  prometheus.Gauge
	queueRejected prometheus.Counter
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "defectbot",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "defectbot",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds by outcome.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"service", "outcome"},
	)
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "defectbot",
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Total stage invocations by stage and status.",
		},
		[]string{"service", "stage", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "defectbot",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage duration in seconds by stage.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "defectbot",
			Subsystem:   "pipeline",
			Name:        "runs_in_flight",
			Help:        "Number of pipeline runs currently executing.",
			ConstLabels: serviceLabel,
		},
	)
	queueRejected := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "defectbot",
			Subsystem:   "pipeline",
			Name:        "queue_rejected_total",
			Help:        "Runs rejected because the worker queue was full.",
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(runsTotal, runDuration, stageTotal, stageDuration, runsInFlight, queueRejected)

	return &PipelineMetrics{
		registry:      registry,
		runsTotal:     runsTotal.MustCurryWith(serviceLabel),
		runDuration:   runDuration.MustCurryWith(serviceLabel),
		stageTotal:    stageTotal.MustCurryWith(serviceLabel),
		stageDuration: stageDuration.MustCurryWith(serviceLabel),
		runsInFlight:  runsInFlight,
		queueRejected: queueRejected,
	}
}

// Handler serves the registry; mounted at /metrics by the daemon.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *PipelineMetrics) FinishRun(outcome string, duration time.Duration) {
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveStage(stage string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.stageTotal.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *PipelineMetrics) QueueRejected() {
	m.queueRejected.Inc()
}
