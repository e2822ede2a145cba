package router

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/calibrant/payband/cmd/predictor/metrics"
	"github.com/calibrant/payband/pkg/boost"
	"github.com/calibrant/payband/pkg/config"
	"github.com/calibrant/payband/pkg/encode"
	"github.com/calibrant/payband/pkg/infer"
	"github.com/calibrant/payband/pkg/registry"
)

// Prometheus metrics register globally, so the whole test binary shares one
// instance.
var testMetrics = metrics.New()

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func loadedEngine(t *testing.T) *infer.Engine {
	t.Helper()
	cfg, err := config.Parse([]byte(`{
	  "mappings": {"levels": {"Junior": 0, "Senior": 1}},
	  "model": {
	    "targets": ["BaseSalary"],
	    "features": [
	      {"name": "YearsOfExperience", "encoding": "numeric", "monotone_constraint": 1},
	      {"name": "Level", "encoding": "ordinal", "monotone_constraint": 1}
	    ],
	    "quantiles": [0.25, 0.5, 0.75]
	  }
	}`))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}

	artifact := registry.Artifact{
		RunID:     "run-router",
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
		Encoder: &encode.State{
			Features: []encode.FeatureState{
				{Name: "YearsOfExperience", Encoding: config.EncodingNumeric},
				{Name: "Level", Encoding: config.EncodingOrdinal, Ordinal: map[string]int{"Junior": 0, "Senior": 1}},
			},
			Columns: []string{"YearsOfExperience", "Level"},
		},
		Models: map[string]*boost.Ensemble{
			"BaseSalary_p25": {Alpha: 0.25, Base: 90000, LearningRate: 0.1},
			"BaseSalary_p50": {Alpha: 0.5, Base: 100000, LearningRate: 0.1},
			"BaseSalary_p75": {Alpha: 0.75, Base: 115000, LearningRate: 0.1},
		},
	}

	engine := infer.New(discard())
	engine.Load(artifact, nil)
	return engine
}

func TestPredictEndpoint(t *testing.T) {
	mux := SetupRoutes(loadedEngine(t), testMetrics, discard())

	body := `{"YearsOfExperience": 6, "Level": "Senior"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := rec.Body.String()
	if got := gjson.Get(resp, "run_id").String(); got != "run-router" {
		t.Errorf("run_id = %q, want run-router", got)
	}
	if got := gjson.Get(resp, "quantiles.BaseSalary.p50").Float(); got != 100000 {
		t.Errorf("p50 = %v, want 100000", got)
	}
	if got := gjson.Get(resp, "quantiles.BaseSalary.p75").Float(); got != 115000 {
		t.Errorf("p75 = %v, want 115000", got)
	}
}

func TestPredictEndpoint_Errors(t *testing.T) {
	engine := loadedEngine(t)
	mux := SetupRoutes(engine, testMetrics, discard())

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"malformed json", http.MethodPost, "{not json", http.StatusBadRequest},
		{"missing feature field", http.MethodPost, `{"YearsOfExperience": 6}`, http.StatusBadRequest},
		{"unknown ordinal value", http.MethodPost, `{"YearsOfExperience": 6, "Level": "Intern"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/predict", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestPredictEndpoint_NotReady(t *testing.T) {
	mux := SetupRoutes(infer.New(discard()), testMetrics, discard())

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	ready := SetupRoutes(loadedEngine(t), testMetrics, discard())
	rec := httptest.NewRecorder()
	ready.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready healthz status = %d, want 200", rec.Code)
	}

	unready := SetupRoutes(infer.New(discard()), testMetrics, discard())
	rec = httptest.NewRecorder()
	unready.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unready healthz status = %d, want 503", rec.Code)
	}
}

func TestModelInfo(t *testing.T) {
	mux := SetupRoutes(loadedEngine(t), testMetrics, discard())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/model", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := rec.Body.String()
	if !gjson.Get(resp, "ready").Bool() {
		t.Error("ready = false, want true")
	}
	if got := gjson.Get(resp, "run_id").String(); got != "run-router" {
		t.Errorf("run_id = %q, want run-router", got)
	}
}
