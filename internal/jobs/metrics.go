package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	variance  *prometheus.GaugeVec
	drifts    *prometheus.CounterVec
	lastCheck *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
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

// SetVariance publishes the latest variance of a reconciliation check for one
// account. A variance beyond tolerance also counts as a drift.
func (m *Metrics) SetVariance(check, account string, variance float64, drift bool) {
	if m == nil {
		return
	}
	m.variance.WithLabelValues(check, account).Set(variance)
	if drift {
		m.drifts.WithLabelValues(check).Inc()
	}
}

// MarkChecked records when a reconciliation check last completed.
func (m *Metrics) MarkChecked(check string, at time.Time) {
	if m == nil {
		return
	}
	m.lastCheck.WithLabelValues(check).Set(float64(at.Unix()))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_books_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_books_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_books_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	variance := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odyssey_books_reconcile_variance",
		Help: "Latest reconciliation variance per check and account code.",
	}, []string{"check", "account"})
	drifts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_books_reconcile_drifts_total",
		Help: "Reconciliation variances beyond tolerance grouped by check.",
	}, []string{"check"})
	lastCheck := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odyssey_books_reconcile_last_run_timestamp_seconds",
		Help: "Unix time of the last completed reconciliation check.",
	}, []string{"check"})
	registerer.MustRegister(runs, failures, duration, variance, drifts, lastCheck)
	return &Metrics{
		runs:      runs,
		failures:  failures,
		duration:  duration,
		variance:  variance,
		drifts:    drifts,
		lastCheck: lastCheck,
	}
}
