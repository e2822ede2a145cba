// Package router configures the predictor's HTTP API.
//
// Routes configured:
//   - POST /v1/predict - Predict salary quantiles for one input row
//   - GET /v1/model - Loaded artifact information
//   - GET /healthz - Health check (503 until an artifact is loaded)
//   - GET /metrics - Prometheus metrics endpoint
//
// The /v1/predict endpoint accepts a flat JSON object whose fields are the
// configured feature columns, e.g.
// {"YearsOfExperience": 6, "Level": "Senior", "Location": "Newark, NJ"},
// and responds with per-target quantile estimates keyed by level.
package router

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calibrant/payband/cmd/predictor/metrics"
	"github.com/calibrant/payband/pkg/dataset"
	"github.com/calibrant/payband/pkg/encode"
	"github.com/calibrant/payband/pkg/httpx"
	"github.com/calibrant/payband/pkg/infer"
)

const maxBodyBytes = 1 << 20

// SetupRoutes configures the predictor's HTTP endpoints.
func SetupRoutes(engine *infer.Engine, m *metrics.Metrics, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandlerWithCheck(func() error {
		if !engine.Ready() {
			return errors.New("no model artifact loaded")
		}
		return nil
	}))

	mux.HandleFunc("/v1/predict", handlePredict(engine, m, logger))
	mux.HandleFunc("/v1/model", handleModelInfo(engine))

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handlePredict serves POST /v1/predict.
func handlePredict(engine *infer.Engine, m *metrics.Metrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		start := time.Now()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			m.PredictionsTotal.WithLabelValues("bad_request").Inc()
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		var row dataset.Row
		if err := json.Unmarshal(body, &row); err != nil {
			m.PredictionsTotal.WithLabelValues("bad_request").Inc()
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "request body must be a JSON object")
			return
		}

		result, err := engine.Predict(r.Context(), row)
		if err != nil {
			status, outcome := classifyError(err)
			m.PredictionsTotal.WithLabelValues(outcome).Inc()
			m.ErrorsTotal.WithLabelValues("predict", outcome).Inc()
			if status == http.StatusInternalServerError {
				logger.Error("prediction failed", "error", err)
				httpx.WriteErrorMessage(w, status, "internal server error")
				return
			}
			httpx.WriteError(w, status, err)
			return
		}

		m.PredictSeconds.Observe(time.Since(start).Seconds())
		m.PredictionsTotal.WithLabelValues("ok").Inc()
		if err := httpx.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error("failed to write prediction response", "error", err)
		}
	}
}

// classifyError maps prediction errors to HTTP statuses and metric labels.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, infer.ErrNotReady):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, infer.ErrSchemaMismatch):
		return http.StatusBadRequest, "schema_mismatch"
	case errors.Is(err, encode.ErrUnknownCategory):
		return http.StatusBadRequest, "unknown_category"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// handleModelInfo serves GET /v1/model.
func handleModelInfo(engine *infer.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		resp := map[string]any{
			"ready":  engine.Ready(),
			"run_id": engine.RunID(),
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			slog.Error("failed to write model info", "error", err)
		}
	}
}
