// Package weight computes per-row training weights from a recency signal:
// newer rows count more, with an exponential decay controlled by k.
package weight

import (
	"math"
	"time"

	"github.com/calibrant/payband/pkg/dataset"
)

// daysPerYear converts day deltas to fractional years.
const daysPerYear = 365.25

// Weights returns one weight per row: exp(-k * ageYears), where age is
// measured in 365.25-day years against the reference date.
//
// ref zero means "use the most recent date found in the frame", so the
// newest row always gets weight 1. Rows with a missing or unparseable date
// get weight 1 (no recency penalty, no bias). k = 0 degenerates to uniform
// weight 1 for every row.
func Weights(frame dataset.Frame, recencyColumn string, k float64, ref time.Time) []float64 {
	weights := make([]float64, frame.Len())
	for i := range weights {
		weights[i] = 1
	}
	if k == 0 {
		return weights
	}

	dates := make([]time.Time, frame.Len())
	valid := make([]bool, frame.Len())
	for i, row := range frame.Rows {
		dates[i], valid[i] = dataset.Date(row[recencyColumn])
	}

	if ref.IsZero() {
		for i, d := range dates {
			if valid[i] && d.After(ref) {
				ref = d
			}
		}
		if ref.IsZero() {
			return weights
		}
	}

	for i := range weights {
		if !valid[i] {
			continue
		}
		age := ref.Sub(dates[i]).Hours() / 24 / daysPerYear
		if age < 0 {
			age = 0
		}
		weights[i] = math.Exp(-k * age)
	}
	return weights
}
