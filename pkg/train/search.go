package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/calibrant/payband/pkg/boost"
)

// Searcher picks training hyperparameters for one model. base carries the
// configured defaults plus the fixed alpha and monotone constraints, which
// implementations must preserve.
type Searcher interface {
	Search(ctx context.Context, x [][]float64, y, w []float64, base boost.Params) (boost.Params, error)
}

// RandomSearcher samples hyperparameter candidates at random and keeps the
// one with the lowest validation pinball loss. Given the same seed and
// inputs the chosen candidate is deterministic: each trial derives its own
// rng from the seed, so scheduling order does not matter.
type RandomSearcher struct {
	Trials             int
	Seed               int64
	ValidationFraction float64
}

func (s *RandomSearcher) Search(ctx context.Context, x [][]float64, y, w []float64, base boost.Params) (boost.Params, error) {
	if s.Trials < 1 {
		return base, fmt.Errorf("trials %d must be >= 1", s.Trials)
	}
	if s.ValidationFraction <= 0 || s.ValidationFraction >= 1 {
		return base, fmt.Errorf("validation fraction %g must be in (0, 1)", s.ValidationFraction)
	}

	trainIdx, validIdx := s.split(len(y))
	if len(trainIdx) == 0 || len(validIdx) == 0 {
		return base, fmt.Errorf("%d rows cannot be split at fraction %g", len(y), s.ValidationFraction)
	}

	xt, yt, wt := subset(x, y, w, trainIdx)
	xv, yv, wv := subset(x, y, w, validIdx)

	type trialResult struct {
		trial  int
		params boost.Params
		loss   float64
	}
	// Each trial writes its own slot, so no locking is needed.
	results := make([]trialResult, s.Trials)

	g, _ := errgroup.WithContext(ctx)
	for trial := 0; trial < s.Trials; trial++ {
		trial := trial
		g.Go(func() error {
			rng := rand.New(rand.NewSource(s.Seed + int64(trial)))
			params := s.sample(rng, base)

			ensemble, err := boost.Train(xt, yt, wt, params)
			if err != nil {
				return fmt.Errorf("trial %d: %w", trial, err)
			}
			loss := boost.PinballLoss(yv, ensemble.PredictBatch(xv), wv, base.Alpha)
			results[trial] = trialResult{trial: trial, params: params, loss: loss}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return base, err
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.loss < best.loss {
			best = r
		}
	}
	if math.IsNaN(best.loss) {
		return base, nil
	}
	return best.params, nil
}

// sample draws one candidate. Alpha and the monotone constraints come from
// base untouched; everything else is drawn from fixed ranges.
func (s *RandomSearcher) sample(rng *rand.Rand, base boost.Params) boost.Params {
	return boost.Params{
		Rounds:         50 + rng.Intn(251),                       // 50..300
		LearningRate:   math.Exp(logUniform(rng, 0.03, 0.3)),     // log-uniform
		MaxDepth:       2 + rng.Intn(5),                          // 2..6
		MinChildWeight: 1 + rng.Float64()*9,                      // 1..10
		Lambda:         rng.Float64() * 10,                       // 0..10
		Alpha:          base.Alpha,
		Monotone:       base.Monotone,
	}
}

func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	return math.Log(lo) + rng.Float64()*(math.Log(hi)-math.Log(lo))
}

// split shuffles row indices with the seed rng and carves off the
// validation tail.
func (s *RandomSearcher) split(n int) (train, valid []int) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(s.Seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	cut := n - int(math.Round(float64(n)*s.ValidationFraction))
	if cut <= 0 || cut >= n {
		cut = n - 1
	}
	return idx[:cut], idx[cut:]
}

func subset(x [][]float64, y, w []float64, idx []int) ([][]float64, []float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	ws := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
		ws[i] = w[j]
	}
	return xs, ys, ws
}
