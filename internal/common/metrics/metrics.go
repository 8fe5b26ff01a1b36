// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_completed_total",
			Help: "Total number of pipeline stage runs that succeeded",
		},
		[]string{"stage"},
	)

	StageFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failed_total",
			Help: "Total number of pipeline stage runs that failed",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stage runs in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	StageActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_stage_active",
			Help: "Number of in-flight runs per pipeline stage",
		},
		[]string{"stage"},
	)

	QuestionFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "question_fallbacks_total",
			Help: "Number of sessions served the fixed fallback questions",
		},
	)

	EventsPublishFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_events_publish_failed_total",
			Help: "Number of session events that could not be published",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
)

// TrackStage marks a stage as active and returns a function that records its outcome.
// Pass an empty errorCode for success.
func TrackStage(stage string) func(errorCode string) {
	start := time.Now()
	StageActive.WithLabelValues(stage).Inc()

	return func(errorCode string) {
		StageActive.WithLabelValues(stage).Dec()
		StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		if errorCode == "" {
			StageCompleted.WithLabelValues(stage).Inc()
			return
		}
		StageFailed.WithLabelValues(stage, errorCode).Inc()
	}
}
