// Package metrics records placement activity in a Prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "placer"

// Outcome labels of a batch.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Recorder holds the placement metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	batches    *prometheus.CounterVec
	violations *prometheus.CounterVec
	written    *prometheus.CounterVec
	pruned     prometheus.Counter
	duration   *prometheus.HistogramVec
	lockWait   prometheus.Histogram
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "batches_total",
			Help:      "Total number of mutating batches by operation and outcome",
		}, []string{"operation", "outcome"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "constraint_violations_total",
			Help:      "Total number of rejected distributions by component",
		}, []string{"component"}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "instances_written_total",
			Help:      "Total number of component instance rows written by resulting state",
		}, []string{"state"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "instances_pruned_total",
			Help:      "Total number of UNSELECTED rows deleted after a batch",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "operation_duration_seconds",
			Help:      "Duration of placement operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for the per-cluster lock",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}),
	}

	for _, c := range []prometheus.Collector{r.batches, r.violations, r.written, r.pruned, r.duration, r.lockWait} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveBatch records the outcome and duration of a mutating operation.
func (r *Recorder) ObserveBatch(operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.batches.WithLabelValues(operation, outcome).Inc()
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveQuery records the duration of a read-only operation.
func (r *Recorder) ObserveQuery(operation string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ConstraintViolation counts a rejected distribution of component.
func (r *Recorder) ConstraintViolation(component string) {
	if r == nil {
		return
	}
	r.violations.WithLabelValues(component).Inc()
}

// InstanceWritten counts a committed instance row in its final state.
func (r *Recorder) InstanceWritten(state string) {
	if r == nil {
		return
	}
	r.written.WithLabelValues(state).Inc()
}

// Pruned counts deleted UNSELECTED rows.
func (r *Recorder) Pruned(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.pruned.Add(float64(n))
}

// LockWait records how long a batch waited for its cluster lock.
func (r *Recorder) LockWait(d time.Duration) {
	if r == nil {
		return
	}
	r.lockWait.Observe(d.Seconds())
}

// WriteTextfile writes the current metrics in the node-exporter textfile
// format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
