// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the pipeline labels (entity, stage, status, kind, validator)
//     onto Prometheus labels.
//   - Pushing collected metrics to a Pushgateway instead of exposing an HTTP
//     scrape endpoint, since a pipeline run is a batch job.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"retaildc/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stageCounter     *prometheus.CounterVec // retaildc_stage_total
	stageDuration    *prometheus.SummaryVec // retaildc_stage_duration_seconds
	rowCounter       *prometheus.CounterVec // retaildc_rows_total
	rejectionCounter *prometheus.CounterVec // retaildc_rejections_total
	entityCounter    *prometheus.CounterVec // retaildc_entity_runs_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "retaildc"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StageTotal,
			Help: "Pipeline stage executions, partitioned by entity, stage, and status.",
		},
		[]string{"entity", "stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StageDuration,
			Help:       "Duration of pipeline stages in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"entity", "stage", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row counts per entity and kind (extracted, dropped_*, loaded).",
		},
		[]string{"entity", "kind"},
	)
	rejectionCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RejectionsTotal,
			Help: "Rows rejected per entity and validator.",
		},
		[]string{"entity", "validator"},
	)
	entityCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.EntityRunsTotal,
			Help: "Finished entity runs per outcome.",
		},
		[]string{"entity", "outcome"},
	)

	for _, c := range []prometheus.Collector{stageCounter, stageDuration, rowCounter, rejectionCounter, entityCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:       gatewayURL,
		jobName:          jobName,
		reg:              reg,
		stageCounter:     stageCounter,
		stageDuration:    stageDuration,
		rowCounter:       rowCounter,
		rejectionCounter: rejectionCounter,
		entityCounter:    entityCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StageTotal:
		if b.stageCounter == nil {
			return
		}
		b.stageCounter.WithLabelValues(labels["entity"], labels["stage"], labels["status"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["entity"], labels["kind"]).Add(delta)

	case metrics.RejectionsTotal:
		if b.rejectionCounter == nil {
			return
		}
		b.rejectionCounter.WithLabelValues(labels["entity"], labels["validator"]).Add(delta)

	case metrics.EntityRunsTotal:
		if b.entityCounter == nil {
			return
		}
		b.entityCounter.WithLabelValues(labels["entity"], labels["outcome"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StageDuration || b.stageDuration == nil {
		return
	}
	b.stageDuration.WithLabelValues(labels["entity"], labels["stage"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
