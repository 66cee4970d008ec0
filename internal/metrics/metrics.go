// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the pipeline.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//
// Concrete systems (Prometheus Pushgateway, Datadog) live in subpackages.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by all backends.
const (
	StageTotal      = "retaildc_stage_total"
	StageDuration   = "retaildc_stage_duration_seconds"
	RowsTotal       = "retaildc_rows_total"
	RejectionsTotal = "retaildc_rejections_total"
	EntityRunsTotal = "retaildc_entity_runs_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStage measures latency and success/failure of one pipeline stage
// (extract, clean, load) for one entity.
func RecordStage(entity, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"entity": entity,
		"stage":  stage,
		"status": status,
	}
	b := current()
	b.IncCounter(StageTotal, 1, lbls)
	b.ObserveHistogram(StageDuration, d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given entity and kind.
//
// Kinds mirror the cleaning report, e.g.:
//   - "extracted"
//   - "extract_failed"
//   - "dropped_required"
//   - "dropped_validation"
//   - "dropped_coerce"
//   - "dropped_normalize"
//   - "dropped_duplicate"
//   - "malformed_dates"
//   - "loaded"
func RecordRows(entity, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"entity": entity,
		"kind":   kind,
	})
}

// RecordRejections counts rows rejected by the named validator.
func RecordRejections(entity, validator string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RejectionsTotal, float64(delta), Labels{
		"entity":    entity,
		"validator": validator,
	})
}

// RecordEntity counts one finished entity run by outcome ("done" or the
// failed stage).
func RecordEntity(entity, outcome string) {
	current().IncCounter(EntityRunsTotal, 1, Labels{
		"entity":  entity,
		"outcome": outcome,
	})
}
