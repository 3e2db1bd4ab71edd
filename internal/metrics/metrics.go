package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes
const (
	OutcomeSuccess       = "success"
	OutcomeSourceFetch   = "source_fetch_error"
	OutcomeBatchWrite    = "batch_write_error"
	OutcomeInProgress    = "run_in_progress"
	OutcomeDeadline      = "deadline_exceeded"
	OutcomeUnknown       = "unknown"
	ResultInserted       = "inserted"
	ResultDuplicate      = "duplicate"
	EmailOutcomeSent     = "sent"
	EmailOutcomeFailed   = "failed"
	WarningKindQmin      = "qmin"
	WarningKindIndex     = "index"
	JobSync              = "sync"
	JobDailyDifferential = "daily_differential"
)

// Metrics captures pipeline and alert health signals. A nil *Metrics is a
// no-op so callers never need to guard.
type Metrics struct {
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	rowsWritten *prometheus.CounterVec
	rowsDropped *prometheus.CounterVec
	warnings    *prometheus.GaugeVec
	emails      *prometheus.CounterVec
}

// New registers the metrics on registerer, or on the default registerer
// when nil.
func New(registerer prometheus.Registerer, serviceName string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		serviceName = "water-metering-sync"
	}
	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pds_job_runs_total",
			Help:        "Job runs by job name and outcome.",
			ConstLabels: constLabels,
		}, []string{"job", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "pds_job_duration_seconds",
			Help:        "Job latency from trigger to completion.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}, []string{"job"}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pds_rows_written_total",
			Help:        "Rows sent to the store by table and result.",
			ConstLabels: constLabels,
		}, []string{"table", "result"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pds_rows_dropped_total",
			Help:        "Sheet rows not written by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		warnings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "pds_differential_warnings",
			Help:        "Warnings raised by the last daily differential run.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pds_alert_emails_total",
			Help:        "Alert emails by delivery outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}

	registerer.MustRegister(m.runs, m.runDuration, m.rowsWritten, m.rowsDropped, m.warnings, m.emails)
	return m
}

// ObserveRun records a finished job
func (m *Metrics) ObserveRun(job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job, outcome).Inc()
	m.runDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// AddRowsWritten records the result of a table write
func (m *Metrics) AddRowsWritten(table string, inserted, duplicates int) {
	if m == nil {
		return
	}
	m.rowsWritten.WithLabelValues(table, ResultInserted).Add(float64(inserted))
	m.rowsWritten.WithLabelValues(table, ResultDuplicate).Add(float64(duplicates))
}

// AddRowsDropped records sheet rows skipped for reason
func (m *Metrics) AddRowsDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsDropped.WithLabelValues(reason).Add(float64(n))
}

// SetWarnings records the warning count of the last alert run
func (m *Metrics) SetWarnings(kind string, n int) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(kind).Set(float64(n))
}

// AddEmails records delivered and failed alert emails
func (m *Metrics) AddEmails(sent, failed int) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(EmailOutcomeSent).Add(float64(sent))
	m.emails.WithLabelValues(EmailOutcomeFailed).Add(float64(failed))
}
