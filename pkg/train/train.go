// Package train orchestrates the full model-building pipeline: outlier
// filtering, feature encoding, recency weighting, and one boosted quantile
// model per (target, level) pair.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calibrant/payband/pkg/boost"
	"github.com/calibrant/payband/pkg/config"
	"github.com/calibrant/payband/pkg/dataset"
	"github.com/calibrant/payband/pkg/encode"
	"github.com/calibrant/payband/pkg/geozone"
	"github.com/calibrant/payband/pkg/outlier"
	"github.com/calibrant/payband/pkg/quantile"
	"github.com/calibrant/payband/pkg/weight"
)

// ErrInsufficientData reports that no target had enough rows to train on.
var ErrInsufficientData = errors.New("insufficient training data")

// Trainer runs the pipeline for one configuration. The resolver may be nil
// when no feature uses proximity encoding; the searcher may be nil to train
// with the configured hyperparameters as-is.
type Trainer struct {
	cfg      *config.Config
	resolver *geozone.Resolver
	searcher Searcher
	logger   *slog.Logger
}

func New(cfg *config.Config, resolver *geozone.Resolver, searcher Searcher, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{cfg: cfg, resolver: resolver, searcher: searcher, logger: logger}
}

// Result is the output of a training run. Model keys are
// "<target>_p<level>", e.g. "BaseSalary_p50".
type Result struct {
	Models   map[string]*boost.Ensemble
	Encoder  *encode.State
	Outliers outlier.Report

	// Skipped maps targets that could not be trained to the reason.
	Skipped map[string]string

	// Params records the hyperparameters each model was trained with,
	// which differ per model when search is enabled.
	Params map[string]boost.Params

	TrainedRows int
}

// ModelKey builds the canonical model name for a target and quantile level.
func ModelKey(target string, level float64) string {
	return target + "_" + quantile.FormatLevel(level)
}

// Run executes the pipeline against a raw frame. Targets whose usable row
// count falls below the configured minimum are skipped and recorded, not
// failed; Run errors only when nothing at all could be trained or a stage
// fails outright.
func (t *Trainer) Run(ctx context.Context, frame dataset.Frame) (*Result, error) {
	if err := t.cfg.ValidateSchema(frame.Columns); err != nil {
		return nil, err
	}

	filtered, report, err := outlier.Filter(frame, t.cfg.Model.Targets)
	if err != nil {
		return nil, fmt.Errorf("outlier filtering: %w", err)
	}
	t.logger.Info("outlier filtering complete",
		"rows_in", report.RowsIn,
		"rows_out", report.RowsOut,
		"dropped", report.TotalDropped)

	state, err := encode.Fit(filtered, t.cfg)
	if err != nil {
		return nil, fmt.Errorf("encoder fit: %w", err)
	}
	vectors, err := encode.Transform(ctx, filtered, state, t.resolver)
	if err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}

	weights := weight.Weights(filtered, t.cfg.Model.RecencyColumn, t.cfg.Model.SampleWeightK, time.Time{})
	constraints := state.ExpandConstraints(t.cfg.MonotoneConstraints())
	levels := t.cfg.QuantileLevels()

	result := &Result{
		Models:      make(map[string]*boost.Ensemble),
		Encoder:     state,
		Outliers:    report,
		Skipped:     make(map[string]string),
		Params:      make(map[string]boost.Params),
		TrainedRows: filtered.Len(),
	}

	type job struct {
		target string
		level  float64
		x      [][]float64
		y      []float64
		w      []float64
	}
	var jobs []job

	for _, target := range t.cfg.Model.Targets {
		x, y, w := targetRows(filtered, vectors, weights, target)
		if len(y) < t.cfg.Model.MinTrainingRows {
			reason := fmt.Sprintf("%d usable rows, need %d", len(y), t.cfg.Model.MinTrainingRows)
			result.Skipped[target] = reason
			t.logger.Warn("skipping target", "target", target, "reason", reason)
			continue
		}
		for _, level := range levels {
			jobs = append(jobs, job{target: target, level: level, x: x, y: y, w: w})
		}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: all %d targets skipped", ErrInsufficientData, len(t.cfg.Model.Targets))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			params := t.baseParams(j.level, constraints)
			if t.searcher != nil {
				found, err := t.searcher.Search(gctx, j.x, j.y, j.w, params)
				if err != nil {
					return fmt.Errorf("search for %s: %w", ModelKey(j.target, j.level), err)
				}
				params = found
			}

			ensemble, err := boost.Train(j.x, j.y, j.w, params)
			if err != nil {
				return fmt.Errorf("training %s: %w", ModelKey(j.target, j.level), err)
			}

			key := ModelKey(j.target, j.level)
			mu.Lock()
			result.Models[key] = ensemble
			result.Params[key] = params
			mu.Unlock()

			t.logger.Info("model trained",
				"model", key,
				"rows", len(j.y),
				"trees", len(ensemble.Trees))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

func (t *Trainer) baseParams(level float64, constraints []int) boost.Params {
	h := t.cfg.Model.Hyperparameters.Training
	return boost.Params{
		Rounds:         h.Rounds,
		LearningRate:   h.LearningRate,
		MaxDepth:       h.MaxDepth,
		MinChildWeight: h.MinChildWeight,
		Lambda:         h.Lambda,
		Alpha:          level,
		Monotone:       constraints,
	}
}

// targetRows keeps the rows where the target parses as a number, aligning
// features and weights to the surviving subset.
func targetRows(frame dataset.Frame, vectors [][]float64, weights []float64, target string) ([][]float64, []float64, []float64) {
	var x [][]float64
	var y, w []float64
	for i, row := range frame.Rows {
		v, ok := dataset.Float(row[target])
		if !ok {
			continue
		}
		x = append(x, vectors[i])
		y = append(y, v)
		w = append(w, weights[i])
	}
	return x, y, w
}
