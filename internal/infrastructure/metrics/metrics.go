// Package metrics exposes Prometheus instruments for the print pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "printagent"

// Job outcomes used as the outcome label
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
	OutcomeTimeout   = "timeout"
)

// PrintMetrics captures print job health signals. All methods are safe on a
// nil receiver so callers can run without metrics.
type PrintMetrics struct {
	jobsSubmitted     *prometheus.CounterVec
	jobsCompleted     *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	deliveryErrors    *prometheus.CounterVec
	navigations       *prometheus.CounterVec
	activeJobs        prometheus.Gauge
	openSandboxes     prometheus.Gauge
	artifactsRemoved  prometheus.Counter
	lateEventsDropped prometheus.Counter
}

var (
	defaultOnce sync.Once
	defaultSet  *PrintMetrics
)

// Default returns the process-wide metrics registered on the default registerer.
func Default() *PrintMetrics {
	defaultOnce.Do(func() {
		defaultSet = New(prometheus.DefaultRegisterer)
	})
	return defaultSet
}

// New creates the instruments and registers them on registerer.
func New(registerer prometheus.Registerer) *PrintMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &PrintMetrics{
		jobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Print jobs accepted by the orchestrator.",
		}, []string{"kind", "strategy"}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Print jobs that reached a terminal state.",
		}, []string{"strategy", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from submission to terminal state.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30},
		}, []string{"strategy", "outcome"}),
		deliveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_errors_total",
			Help:      "Delivery failures by error code.",
		}, []string{"strategy", "code"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Navigation requests by disposition.",
		}, []string{"disposition"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Print jobs currently in flight.",
		}),
		openSandboxes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sandboxes_open",
			Help:      "Rendering sandboxes not yet closed.",
		}),
		artifactsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_removed_total",
			Help:      "Staged print artifacts removed by the cleanup sweep.",
		}),
		lateEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_events_dropped_total",
			Help:      "Sandbox events that arrived after their job finished.",
		}),
	}

	registerer.MustRegister(
		m.jobsSubmitted,
		m.jobsCompleted,
		m.jobDuration,
		m.deliveryErrors,
		m.navigations,
		m.activeJobs,
		m.openSandboxes,
		m.artifactsRemoved,
		m.lateEventsDropped,
	)
	return m
}

// JobSubmitted counts an accepted job and marks it active.
func (m *PrintMetrics) JobSubmitted(kind, strategy string) {
	if m == nil {
		return
	}
	m.jobsSubmitted.WithLabelValues(kind, strategy).Inc()
	m.activeJobs.Inc()
}

// JobFinished records a terminal job.
func (m *PrintMetrics) JobFinished(strategy, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsCompleted.WithLabelValues(strategy, outcome).Inc()
	m.jobDuration.WithLabelValues(strategy, outcome).Observe(elapsed.Seconds())
	m.activeJobs.Dec()
}

// DeliveryFailed counts a delivery error by code.
func (m *PrintMetrics) DeliveryFailed(strategy, code string) {
	if m == nil {
		return
	}
	m.deliveryErrors.WithLabelValues(strategy, code).Inc()
}

// Navigation counts a navigation request, e.g. "print" or "ignored".
func (m *PrintMetrics) Navigation(disposition string) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(disposition).Inc()
}

// SandboxOpened increments the open sandbox gauge.
func (m *PrintMetrics) SandboxOpened() {
	if m == nil {
		return
	}
	m.openSandboxes.Inc()
}

// SandboxClosed decrements the open sandbox gauge.
func (m *PrintMetrics) SandboxClosed() {
	if m == nil {
		return
	}
	m.openSandboxes.Dec()
}

// ArtifactsRemoved counts files removed by a cleanup sweep.
func (m *PrintMetrics) ArtifactsRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.artifactsRemoved.Add(float64(n))
}

// LateEventDropped counts a sandbox event ignored because its job had ended.
func (m *PrintMetrics) LateEventDropped() {
	if m == nil {
		return
	}
	m.lateEventsDropped.Inc()
}
