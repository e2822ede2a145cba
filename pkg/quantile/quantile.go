// Package quantile provides quantile level parsing and the post-hoc crossing
// correction applied to independently trained per-quantile predictions.
package quantile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseLevel parses a quantile level from either p-notation (p25, p50, p75)
// or decimal notation (0.25, 0.5, 0.75).
//
// Levels must fall strictly inside (0, 1): the 0th and 100th percentile are
// not meaningful targets for quantile regression.
func ParseLevel(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("quantile level cannot be empty")
	}

	var q float64
	if strings.HasPrefix(strings.ToLower(s), "p") {
		percentile, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid p-notation %q: %w", s, err)
		}
		q = percentile / 100.0
	} else {
		var err error
		q, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid quantile %q: %w", s, err)
		}
	}

	if q <= 0 || q >= 1 {
		return 0, fmt.Errorf("quantile %v out of range (0, 1)", q)
	}
	return q, nil
}

// FormatLevel formats a quantile level as p-notation for model naming and
// display: 0.25 → "p25", 0.5 → "p50", 0.975 → "p97.5".
func FormatLevel(q float64) string {
	percentile := q * 100
	if percentile == float64(int(percentile)) {
		return fmt.Sprintf("p%d", int(percentile))
	}
	return fmt.Sprintf("p%.1f", percentile)
}

// SortedLevels returns the keys of raw in ascending order.
func SortedLevels(raw map[float64]float64) []float64 {
	levels := make([]float64, 0, len(raw))
	for q := range raw {
		levels = append(levels, q)
	}
	sort.Float64s(levels)
	return levels
}

// CorrectCrossing enforces a non-decreasing sequence across ascending
// quantile levels: each corrected value is the running maximum of the raw
// predictions up to that level. The lowest level is taken as-is.
//
// The returned map has the same keys as raw; the input is not modified.
func CorrectCrossing(raw map[float64]float64) map[float64]float64 {
	corrected := make(map[float64]float64, len(raw))

	prev := 0.0
	for i, q := range SortedLevels(raw) {
		v := raw[q]
		if i > 0 && v < prev {
			v = prev
		}
		corrected[q] = v
		prev = v
	}
	return corrected
}
