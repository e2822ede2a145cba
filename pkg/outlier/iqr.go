// Package outlier removes extreme target values before training using the
// interquartile range rule.
package outlier

import (
	"fmt"
	"sort"

	"github.com/calibrant/payband/pkg/dataset"
)

// fenceMultiplier is the classic Tukey fence: values outside
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR] are treated as outliers.
const fenceMultiplier = 1.5

// Report counts how many rows each target column flagged. A row flagged by
// several targets is counted once per target but dropped once.
type Report struct {
	RowsIn       int
	RowsOut      int
	DroppedBy    map[string]int
	TotalDropped int
}

// Filter drops any row whose value for at least one target column lies
// outside the IQR fences for that column (union policy). Rows whose value
// does not parse as a number are left alone and excluded from the fence
// computation. Filtering is idempotent: running it on an already-filtered
// frame removes no further rows.
func Filter(frame dataset.Frame, targets []string) (dataset.Frame, Report, error) {
	report := Report{
		RowsIn:    frame.Len(),
		DroppedBy: make(map[string]int, len(targets)),
	}

	drop := make([]bool, frame.Len())

	for _, target := range targets {
		if !frame.HasColumn(target) {
			return dataset.Frame{}, Report{}, fmt.Errorf("target column %q not in frame", target)
		}

		values := make([]float64, 0, frame.Len())
		rowIdx := make([]int, 0, frame.Len())
		for i, row := range frame.Rows {
			v, ok := dataset.Float(row[target])
			if !ok {
				continue
			}
			values = append(values, v)
			rowIdx = append(rowIdx, i)
		}

		lo, hi, ok := fences(values)
		if !ok {
			continue
		}

		for j, v := range values {
			if v < lo || v > hi {
				report.DroppedBy[target]++
				drop[rowIdx[j]] = true
			}
		}
	}

	keep := make([]int, 0, frame.Len())
	for i := range frame.Rows {
		if !drop[i] {
			keep = append(keep, i)
		}
	}

	filtered := frame.Select(keep)
	report.RowsOut = filtered.Len()
	report.TotalDropped = report.RowsIn - report.RowsOut
	return filtered, report, nil
}

// fences computes the Tukey fences for a column. With IQR = 0 the fences
// collapse to [Q1, Q3], which keeps every row of a constant column while
// still rejecting values outside the flat bulk. ok is false for an empty
// column.
func fences(values []float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := interpolatedQuantile(sorted, 0.25)
	q3 := interpolatedQuantile(sorted, 0.75)
	iqr := q3 - q1

	return q1 - fenceMultiplier*iqr, q3 + fenceMultiplier*iqr, true
}

// interpolatedQuantile computes the q-quantile of a sorted slice with linear
// interpolation between adjacent order statistics.
func interpolatedQuantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	pos := q * float64(n-1)
	lower := int(pos)
	if lower >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
