// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts pipeline invocations by operation and outcome.
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upreview_pipeline_runs_total",
			Help: "Total number of pipeline runs by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ModelCallDuration observes outbound model call latency.
	ModelCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upreview_model_call_duration_seconds",
			Help:    "Duration of generative model calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ModelParseFailures counts model responses that failed JSON parsing or
	// shape validation.
	ModelParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upreview_model_parse_failures_total",
			Help: "Total number of unparseable or malformed model responses",
		},
	)

	// ExcerptsDropped counts excerpt candidates rejected by validation
	// (unknown phrase, empty text, review id not in the corpus whitelist).
	ExcerptsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upreview_excerpts_dropped_total",
			Help: "Total number of excerpt candidates dropped by validation",
		},
	)
)
