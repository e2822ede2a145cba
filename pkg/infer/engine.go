// Package infer serves predictions from a loaded model artifact. The engine
// holds one artifact at a time and swaps it atomically, so a predictor can
// pick up new training runs without downtime.
package infer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calibrant/payband/pkg/dataset"
	"github.com/calibrant/payband/pkg/encode"
	"github.com/calibrant/payband/pkg/geozone"
	"github.com/calibrant/payband/pkg/quantile"
	"github.com/calibrant/payband/pkg/registry"
	"github.com/calibrant/payband/pkg/train"
)

var (
	// ErrNotReady reports that no artifact has been loaded yet.
	ErrNotReady = errors.New("no model artifact loaded")

	// ErrSchemaMismatch reports an input row missing required feature
	// fields.
	ErrSchemaMismatch = errors.New("input schema mismatch")
)

// Result is the prediction for one input row. Quantiles maps each target
// to its level-keyed estimates ("p25", "p50", ...), already corrected for
// quantile crossing.
type Result struct {
	RunID     string                        `json:"run_id"`
	Quantiles map[string]map[string]float64 `json:"quantiles"`
}

// loaded pairs an artifact with the resolver built for its anchor
// locations, so a swap replaces both together.
type loaded struct {
	artifact registry.Artifact
	resolver *geozone.Resolver
}

// Engine is safe for concurrent Predict and Load calls.
type Engine struct {
	mu     sync.RWMutex
	state  *loaded
	logger *slog.Logger
}

// New builds an engine with no artifact loaded.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Load swaps in a new artifact together with the resolver for its anchor
// locations; resolver may be nil when no feature uses proximity encoding.
// In-flight predictions finish against the artifact they started with.
func (e *Engine) Load(artifact registry.Artifact, resolver *geozone.Resolver) {
	e.mu.Lock()
	e.state = &loaded{artifact: artifact, resolver: resolver}
	e.mu.Unlock()
	e.logger.Info("model artifact loaded",
		"run_id", artifact.RunID,
		"models", len(artifact.Models),
		"created_at", artifact.CreatedAt)
}

// Ready reports whether an artifact is loaded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state != nil
}

// RunID returns the loaded artifact's run id, or "" when none is loaded.
func (e *Engine) RunID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return ""
	}
	return e.state.artifact.RunID
}

// LoadedAt returns the loaded artifact's creation time, or the zero time
// when none is loaded.
func (e *Engine) LoadedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return time.Time{}
	}
	return e.state.artifact.CreatedAt
}

// Predict encodes one input row and evaluates every trained quantile model.
// Per target, raw estimates are corrected so levels never cross. Targets
// skipped at training time are absent from the result.
func (e *Engine) Predict(ctx context.Context, row dataset.Row) (*Result, error) {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()
	if state == nil {
		return nil, ErrNotReady
	}
	artifact := &state.artifact

	if err := checkSchema(row, artifact.Encoder); err != nil {
		return nil, err
	}

	vec, err := encode.TransformRow(ctx, row, artifact.Encoder, state.resolver)
	if err != nil {
		return nil, fmt.Errorf("encoding input: %w", err)
	}

	levels := artifact.Config.QuantileLevels()
	result := &Result{
		RunID:     artifact.RunID,
		Quantiles: make(map[string]map[string]float64),
	}

	for _, target := range artifact.Config.Model.Targets {
		raw := make(map[float64]float64, len(levels))
		for _, level := range levels {
			model, ok := artifact.Models[train.ModelKey(target, level)]
			if !ok {
				continue
			}
			raw[level] = model.Predict(vec)
		}
		if len(raw) == 0 {
			continue
		}

		corrected := quantile.CorrectCrossing(raw)
		byLevel := make(map[string]float64, len(corrected))
		for level, value := range corrected {
			byLevel[quantile.FormatLevel(level)] = value
		}
		result.Quantiles[target] = byLevel
	}

	return result, nil
}

// checkSchema verifies the row carries every configured feature field.
func checkSchema(row dataset.Row, state *encode.State) error {
	var missing []string
	for _, fs := range state.Features {
		if _, ok := row[fs.Name]; !ok {
			missing = append(missing, fs.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing fields %v", ErrSchemaMismatch, missing)
	}
	return nil
}
