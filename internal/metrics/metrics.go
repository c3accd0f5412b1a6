// Package metrics provides Prometheus metrics for the upload pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lcr_uploads_total",
			Help: "Uploads received, by outcome code",
		},
		[]string{"code"},
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lcr_upload_bytes_total",
			Help: "Raw upload bytes archived",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lcr_pipeline_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage"},
	)

	RecalcInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lcr_recalc_in_flight",
			Help: "Uploads holding the single-writer gate",
		},
	)

	WritersWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lcr_writers_waiting",
			Help: "Uploads queued behind the single-writer gate",
		},
	)
)

// ObserveStage records how long a pipeline stage took since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
