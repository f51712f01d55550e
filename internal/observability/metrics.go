package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// monitoring and planning workflows.
type Metrics struct {
	MonitoringCycles prometheus.Counter
	SourceErrors     *prometheus.CounterVec // labels: source
	RecordsFetched   prometheus.Counter
	EngineRunning    prometheus.Gauge

	// Classification metrics.
	Classifications     *prometheus.CounterVec // labels: source={model,fallback}, verdict={threat,no_threat}
	FallbackActivations prometheus.Counter
	Confirmations       *prometheus.CounterVec // labels: verdict={confirmed,rejected}

	// Escalation and planning metrics.
	EventsCreated     prometheus.Counter
	Escalations       prometheus.Counter
	PlanningRuns      *prometheus.CounterVec // labels: outcome={complete,error}
	NotificationSends *prometheus.CounterVec // labels: outcome={sent,failed}

	CycleDuration prometheus.Histogram
}

// NewMetrics creates and registers all workflow metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.MonitoringCycles,
		m.SourceErrors,
		m.RecordsFetched,
		m.EngineRunning,
		m.Classifications,
		m.FallbackActivations,
		m.Confirmations,
		m.EventsCreated,
		m.Escalations,
		m.PlanningRuns,
		m.NotificationSends,
		m.CycleDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MonitoringCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "monitoring_cycles_total",
			Help:      "Total detection cycles started.",
		}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "source_errors_total",
			Help:      "Hazard feed fetch failures by source.",
		}, []string{"source"}),
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "hazard_records_fetched_total",
			Help:      "Total normalized hazard records fetched.",
		}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "disaster_coord",
			Name:      "engine_running",
			Help:      "1 when the detection loop is active, 0 when shut down.",
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "classifications_total",
			Help:      "Threat classifications by source and verdict.",
		}, []string{"source", "verdict"}),
		FallbackActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "classifier_fallback_total",
			Help:      "Times the rule-based fallback replaced the model.",
		}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "search_confirmations_total",
			Help:      "Search confirmation results by verdict.",
		}, []string{"verdict"}),
		EventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "events_created_total",
			Help:      "Disaster event records created.",
		}),
		Escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "escalations_total",
			Help:      "Detections escalated to the planning workflow.",
		}),
		PlanningRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "planning_runs_total",
			Help:      "Planning workflow completions by outcome.",
		}, []string{"outcome"}),
		NotificationSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_coord",
			Name:      "notification_sends_total",
			Help:      "Notification delivery attempts by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "disaster_coord",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete detection cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
