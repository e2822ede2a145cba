// Package encode turns raw dataset columns into fixed-width numeric feature
// vectors, driven by the configured per-feature encoding strategy. Fitted
// state is serializable and travels inside the model artifact so inference
// replays the exact training-time encoding.
package encode

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/calibrant/payband/pkg/config"
	"github.com/calibrant/payband/pkg/dataset"
	"github.com/calibrant/payband/pkg/geozone"
)

// ErrUnknownCategory reports an ordinal value with no configured rank.
// Ordinal features have a domain-defined total order, so an unmapped label
// is a data error rather than a bucketable unknown.
var ErrUnknownCategory = errors.New("unknown category")

// State is the fitted encoder state. It is immutable after Fit and safe to
// share across concurrent Transform calls.
type State struct {
	Features []FeatureState `json:"features"`

	// Columns is the expanded output column order: one entry per vector
	// position. One-hot features contribute one column per category.
	Columns []string `json:"columns"`
}

// FeatureState holds the fitted state for a single configured feature.
type FeatureState struct {
	Name     string `json:"name"`
	Encoding string `json:"encoding"`

	// Ordinal is the rank mapping snapshot for ordinal features.
	Ordinal map[string]int `json:"ordinal,omitempty"`

	// Categories is the set observed at fit time for one-hot features,
	// sorted so the expansion does not depend on row order.
	Categories []string `json:"categories,omitempty"`

	// Labels maps categories to integer ids for label features, assigned
	// in order of first occurrence at fit time. Unseen categories at
	// transform time map to the reserved id len(Labels).
	Labels map[string]int `json:"labels,omitempty"`
}

// Width returns the number of output columns this feature contributes.
func (f FeatureState) Width() int {
	if f.Encoding == config.EncodingOneHot {
		return len(f.Categories)
	}
	return 1
}

// Fit learns the encoder state from a training frame and the configuration.
// Fitting is deterministic given identical input: one-hot category sets are
// sorted, ordinal mappings are config snapshots, and label tables follow
// first-occurrence order.
func Fit(frame dataset.Frame, cfg *config.Config) (*State, error) {
	state := &State{}

	for _, feature := range cfg.Model.Features {
		if !frame.HasColumn(feature.Name) {
			return nil, fmt.Errorf("feature %q not in frame", feature.Name)
		}

		fs := FeatureState{Name: feature.Name, Encoding: feature.Encoding}

		switch feature.Encoding {
		case config.EncodingOrdinal:
			fs.Ordinal = make(map[string]int, len(cfg.Mappings.Levels))
			for label, rank := range cfg.Mappings.Levels {
				fs.Ordinal[label] = rank
			}

		case config.EncodingOneHot:
			seen := make(map[string]bool)
			for _, row := range frame.Rows {
				if v, ok := dataset.String(row[feature.Name]); ok && v != "" {
					seen[v] = true
				}
			}
			fs.Categories = make([]string, 0, len(seen))
			for cat := range seen {
				fs.Categories = append(fs.Categories, cat)
			}
			sort.Strings(fs.Categories)

		case config.EncodingLabel:
			fs.Labels = make(map[string]int)
			for _, row := range frame.Rows {
				v, ok := dataset.String(row[feature.Name])
				if !ok || v == "" {
					continue
				}
				if _, assigned := fs.Labels[v]; !assigned {
					fs.Labels[v] = len(fs.Labels)
				}
			}

		case config.EncodingNumeric, config.EncodingProximity:
			// No fit-time state.

		default:
			return nil, fmt.Errorf("feature %q: unknown encoding %q", feature.Name, feature.Encoding)
		}

		state.Features = append(state.Features, fs)
	}

	state.Columns = expandColumns(state.Features)
	return state, nil
}

func expandColumns(features []FeatureState) []string {
	var columns []string
	for _, fs := range features {
		if fs.Encoding == config.EncodingOneHot {
			for _, cat := range fs.Categories {
				columns = append(columns, fs.Name+"="+cat)
			}
			continue
		}
		columns = append(columns, fs.Name)
	}
	return columns
}

// Width returns the encoded vector width.
func (s *State) Width() int { return len(s.Columns) }

// ExpandConstraints maps per-feature monotone constraints onto the expanded
// output columns: every column a feature contributes inherits that
// feature's constraint.
func (s *State) ExpandConstraints(constraints []int) []int {
	expanded := make([]int, 0, s.Width())
	for i, fs := range s.Features {
		c := 0
		if i < len(constraints) {
			c = constraints[i]
		}
		for w := 0; w < fs.Width(); w++ {
			expanded = append(expanded, c)
		}
	}
	return expanded
}

// Transform encodes every row of the frame. The resolver is consulted for
// proximity features only and may be nil when no feature uses proximity
// encoding.
func Transform(ctx context.Context, frame dataset.Frame, state *State, resolver *geozone.Resolver) ([][]float64, error) {
	vectors := make([][]float64, 0, frame.Len())
	for i, row := range frame.Rows {
		vec, err := TransformRow(ctx, row, state, resolver)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// TransformRow encodes a single row into a fixed-width vector matching
// State.Columns. Unseen one-hot categories produce the all-zero expansion;
// unseen label categories map to the reserved unknown bucket; unseen
// ordinal values fail with ErrUnknownCategory.
func TransformRow(ctx context.Context, row dataset.Row, state *State, resolver *geozone.Resolver) ([]float64, error) {
	vec := make([]float64, 0, state.Width())

	for _, fs := range state.Features {
		raw := row[fs.Name]

		switch fs.Encoding {
		case config.EncodingNumeric:
			v, _ := dataset.Float(raw)
			vec = append(vec, v)

		case config.EncodingOrdinal:
			label, _ := dataset.String(raw)
			rank, ok := fs.Ordinal[label]
			if !ok {
				return nil, fmt.Errorf("%w: feature %q value %q", ErrUnknownCategory, fs.Name, label)
			}
			vec = append(vec, float64(rank))

		case config.EncodingOneHot:
			value, _ := dataset.String(raw)
			for _, cat := range fs.Categories {
				if cat == value {
					vec = append(vec, 1)
				} else {
					vec = append(vec, 0)
				}
			}

		case config.EncodingProximity:
			location, ok := dataset.String(raw)
			if !ok || location == "" {
				vec = append(vec, geozone.ZoneUnknown)
				continue
			}
			if resolver == nil {
				return nil, fmt.Errorf("feature %q: proximity encoding requires a resolver", fs.Name)
			}
			zone, err := resolver.Resolve(ctx, location)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", fs.Name, err)
			}
			vec = append(vec, float64(zone))

		case config.EncodingLabel:
			value, _ := dataset.String(raw)
			id, ok := fs.Labels[value]
			if !ok {
				id = len(fs.Labels) // unknown bucket
			}
			vec = append(vec, float64(id))

		default:
			return nil, fmt.Errorf("feature %q: unknown encoding %q", fs.Name, fs.Encoding)
		}
	}

	return vec, nil
}

// InverseOrdinal recovers the label for a given ordinal rank. Supports the
// round-trip check used when presenting encoded values back to users.
func InverseOrdinal(state *State, feature string, rank int) (string, bool) {
	for _, fs := range state.Features {
		if fs.Name != feature || fs.Encoding != config.EncodingOrdinal {
			continue
		}
		for label, r := range fs.Ordinal {
			if r == rank {
				return label, true
			}
		}
	}
	return "", false
}
