// Package metrics exposes Prometheus instrumentation for reconciliation
// runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	runsTotal          *prometheus.CounterVec
	employeesProcessed prometheus.Counter
	rowsUpserted       prometheus.Counter
	rowsSkipped        prometheus.Counter
	employeeErrors     prometheus.Counter
	runDuration        prometheus.Histogram
}

// New registers the engine's collectors on reg and returns the handle
// the processor reports through.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Reconciliation runs, labelled by trigger mode.",
		}, []string{"mode"}),
		employeesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Subsystem: "reconcile",
			Name:      "employees_processed_total",
			Help:      "Employees whose pipeline completed.",
		}),
		rowsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Subsystem: "reconcile",
			Name:      "rows_upserted_total",
			Help:      "Attendance rows written.",
		}),
		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Subsystem: "reconcile",
			Name:      "rows_skipped_total",
			Help:      "Writes refused by the admin-verification guard.",
		}),
		employeeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Subsystem: "reconcile",
			Name:      "employee_errors_total",
			Help:      "Per-employee pipeline failures.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attendance",
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full reconciliation run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runsTotal, m.employeesProcessed, m.rowsUpserted,
			m.rowsSkipped, m.employeeErrors, m.runDuration)
	}
	return m
}

// ObserveRun records the aggregate outcome of one run. mode is "live" or
// "dry_run". Safe on a nil receiver so callers can leave metrics unwired.
func (m *Metrics) ObserveRun(mode string, employees, upserted, skipped, errs int, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(mode).Inc()
	m.employeesProcessed.Add(float64(employees))
	m.rowsUpserted.Add(float64(upserted))
	m.rowsSkipped.Add(float64(skipped))
	m.employeeErrors.Add(float64(errs))
	m.runDuration.Observe(d.Seconds())
}
