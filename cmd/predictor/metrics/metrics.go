// Package metrics provides Prometheus instrumentation for the predictor.
//
// Metrics exposed:
//   - payband_predict_seconds: Histogram of prediction request duration
//   - payband_predictions_total: Counter of predictions by outcome
//   - payband_model_age_seconds: Gauge of the loaded artifact's age
//   - payband_model_reloads_total: Counter of artifact reloads
//   - payband_errors_total: Counter of errors by component and reason
//
// All metrics are served on the /metrics endpoint for Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	PredictSeconds   prometheus.Histogram
	PredictionsTotal *prometheus.CounterVec
	ModelAgeSeconds  prometheus.Gauge
	ModelReloads     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
}

// New creates and registers all predictor metrics.
func New() *Metrics {
	return &Metrics{
		PredictSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "payband_predict_seconds",
			Help:    "Time spent serving a prediction request",
			Buckets: prometheus.DefBuckets,
		}),

		PredictionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payband_predictions_total",
			Help: "Prediction requests by outcome",
		}, []string{"outcome"}),

		ModelAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "payband_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),

		ModelReloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payband_model_reloads_total",
			Help: "Number of artifact reloads since start",
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payband_errors_total",
			Help: "Errors by component and reason",
		}, []string{"component", "reason"}),
	}
}
