// Package jobmetrics instruments background jobs.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	overdueLines  *prometheus.GaugeVec
	overdueAmount *prometheus.GaugeVec
}

// NewMetrics registers the job metrics. A nil registerer yields a Metrics
// that records nothing.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		return nil
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obligations_jobs_total",
			Help: "Job executions by job name and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obligations_jobs_failures_total",
			Help: "Failures observed for background jobs.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "obligations_job_duration_seconds",
			Help:    "Duration of background job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		overdueLines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "obligations_overdue_lines",
			Help: "Overdue receivable lines found by the last scan.",
		}, []string{"type"}),
		overdueAmount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "obligations_overdue_amount",
			Help: "Overdue receivable amount found by the last scan.",
		}, []string{"type"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.overdueLines, m.overdueAmount)
	return m
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and outcome, returning err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetOverdue publishes the overdue backlog of one obligation type.
func (m *Metrics) SetOverdue(obligationType string, lines int, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.overdueLines.WithLabelValues(obligationType).Set(float64(lines))
	m.overdueAmount.WithLabelValues(obligationType).Set(amount.InexactFloat64())
}
