// Package dataset provides the tabular frame passed through the training
// pipeline, along with loose numeric and date coercion helpers for the kind
// of messy values that appear in compensation survey exports.
package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Row is a single observation keyed by column name. Values are stored as
// loaded (strings for CSV input) and coerced on access via Float and Date.
type Row map[string]any

// Frame is a lightweight tabular structure: an ordered set of column names
// plus the rows that carry them. It is the unit of data exchanged between
// the outlier filter, the encoder, and the trainer.
type Frame struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// HasColumn reports whether the frame's schema contains the named column.
func (f Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Select returns a copy of the frame containing only the rows at the given
// indices. The schema is shared, the row maps are not copied.
func (f Frame) Select(indices []int) Frame {
	rows := make([]Row, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, f.Rows[i])
	}
	return Frame{Columns: f.Columns, Rows: rows}
}

// Float coerces a cell value to float64.
//
// Strings may carry survey shorthand: "11+" parses as 11, and a range like
// "5-10" parses as its midpoint. Empty strings and unparseable values report
// ok=false.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		return parseLooseNumber(x)
	default:
		return 0, false
	}
}

func parseLooseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if strings.HasSuffix(s, "+") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "+"), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	// A range like "5-10" becomes its midpoint. A leading '-' is a sign,
	// not a range separator.
	if i := strings.Index(s, "-"); i > 0 {
		lo, errLo := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
		hi, errHi := strconv.ParseFloat(strings.TrimSpace(s[i+1:]), 64)
		if errLo == nil && errHi == nil {
			return (lo + hi) / 2, true
		}
	}
	return 0, false
}

// dateLayouts are tried in order when parsing date cells. Survey exports
// mix ISO dates with US-style formats in the same column.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"1/2/2006",
	"01/02/2006",
}

// Date coerces a cell value to a time.Time. Unparseable values report
// ok=false rather than an error so callers can treat them as missing.
func Date(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// String coerces a cell value to a trimmed string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}
