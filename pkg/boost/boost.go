// Package boost implements gradient-boosted regression trees with pinball
// loss for quantile estimation. Monotone constraints are enforced at split
// time, so every prediction respects the configured feature directions.
package boost

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoData reports an empty or degenerate training matrix.
var ErrNoData = errors.New("no training data")

// Params configures a single boosting run. Alpha is the quantile level in
// (0, 1); Monotone carries one constraint (-1, 0, +1) per feature column.
type Params struct {
	Rounds         int
	LearningRate   float64
	MaxDepth       int
	MinChildWeight float64
	Lambda         float64
	Alpha          float64
	Monotone       []int
}

func (p Params) validate() error {
	if p.Rounds < 1 {
		return fmt.Errorf("rounds %d must be >= 1", p.Rounds)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return fmt.Errorf("learning rate %g must be in (0, 1]", p.LearningRate)
	}
	if p.MaxDepth < 1 {
		return fmt.Errorf("max depth %d must be >= 1", p.MaxDepth)
	}
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("alpha %g must be in (0, 1)", p.Alpha)
	}
	if p.Lambda < 0 {
		return fmt.Errorf("lambda %g must be >= 0", p.Lambda)
	}
	for _, c := range p.Monotone {
		if c < -1 || c > 1 {
			return fmt.Errorf("monotone constraint %d must be -1, 0, or 1", c)
		}
	}
	return nil
}

// Ensemble is a trained boosting model. It is immutable after Train and
// safe for concurrent Predict calls. The JSON form is the persisted
// artifact representation.
type Ensemble struct {
	Alpha        float64 `json:"alpha"`
	Base         float64 `json:"base"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

// Predict returns the model's quantile estimate for a feature vector.
func (e *Ensemble) Predict(x []float64) float64 {
	pred := e.Base
	for i := range e.Trees {
		pred += e.LearningRate * e.Trees[i].Predict(x)
	}
	return pred
}

// PredictBatch predicts every row of the matrix.
func (e *Ensemble) PredictBatch(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = e.Predict(row)
	}
	return out
}

// Train fits a quantile ensemble to the feature matrix x, targets y and
// sample weights w. A nil w means uniform weights. The base score is the
// weighted alpha-quantile of y; each round fits a tree to the pinball
// pseudo-residuals and re-fits its leaves to residual quantiles.
func Train(x [][]float64, y, w []float64, params Params) (*Ensemble, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrNoData, len(x), len(y))
	}
	if w == nil {
		w = make([]float64, len(y))
		for i := range w {
			w[i] = 1
		}
	}
	if len(w) != len(y) {
		return nil, fmt.Errorf("%w: %d weights for %d rows", ErrNoData, len(w), len(y))
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrNoData, i, len(row), width)
		}
	}

	ensemble := &Ensemble{
		Alpha:        params.Alpha,
		LearningRate: params.LearningRate,
		Base:         weightedQuantile(append([]float64(nil), y...), w, params.Alpha),
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = ensemble.Base
	}

	grad := make([]float64, len(y))
	resid := make([]float64, len(y))

	for round := 0; round < params.Rounds; round++ {
		allZero := true
		for i := range y {
			r := y[i] - pred[i]
			resid[i] = r
			// Negative pinball gradient: alpha above the current
			// estimate, alpha-1 below it.
			if r > 0 {
				grad[i] = params.Alpha
			} else if r < 0 {
				grad[i] = params.Alpha - 1
			} else {
				grad[i] = 0
			}
			if r != 0 {
				allZero = false
			}
		}
		if allZero {
			break
		}

		grower := &treeGrower{
			x:        x,
			grad:     grad,
			resid:    resid,
			weight:   w,
			params:   params,
			monotone: params.Monotone,
		}
		tree := grower.grow()
		ensemble.Trees = append(ensemble.Trees, tree)

		for i, row := range x {
			pred[i] += params.LearningRate * tree.Predict(row)
		}
	}

	return ensemble, nil
}

// PinballLoss is the mean weighted pinball loss of predictions against
// targets at level alpha. Lower is better; it is the loss Train descends
// and the score hyperparameter search ranks candidates by.
func PinballLoss(yTrue, yPred, w []float64, alpha float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	sum, sumW := 0.0, 0.0
	for i := range yTrue {
		weight := 1.0
		if w != nil {
			weight = w[i]
		}
		diff := yTrue[i] - yPred[i]
		if diff >= 0 {
			sum += weight * alpha * diff
		} else {
			sum += weight * (alpha - 1) * diff
		}
		sumW += weight
	}
	if sumW == 0 {
		return math.NaN()
	}
	return sum / sumW
}
