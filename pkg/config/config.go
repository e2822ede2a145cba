// Package config defines the model configuration document consumed by the
// training pipeline and the inference engine.
//
// The document is JSON shaped like:
//
//	{
//	  "mappings": {
//	    "levels": {"E3": 0, "E4": 1, "E5": 2},
//	    "location_targets": {"New York, NY": 1, "San Francisco, CA": 1}
//	  },
//	  "location_settings": {"max_distance_km": 50},
//	  "model": {
//	    "targets": ["BaseSalary", "Stock", "Bonus"],
//	    "features": [
//	      {"name": "Level", "encoding": "ordinal", "monotone_constraint": 1},
//	      {"name": "Location", "encoding": "proximity", "monotone_constraint": 0},
//	      {"name": "YearsOfExperience", "monotone_constraint": 1}
//	    ],
//	    "quantiles": [0.25, 0.5, 0.75],
//	    "sample_weight_k": 0.5
//	  }
//	}
//
// Configuration may be authored by hand or produced by an external config
// generation workflow; both go through the same validation path.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/calibrant/payband/pkg/quantile"
)

// ErrInvalidConfig marks any configuration document failure. Wrapped errors
// name the offending field so the document can be fixed.
var ErrInvalidConfig = errors.New("invalid config")

// Encoding strategies selectable per feature.
const (
	EncodingNumeric   = "numeric"
	EncodingOrdinal   = "ordinal"
	EncodingOneHot    = "onehot"
	EncodingProximity = "proximity"
	EncodingLabel     = "label"
)

// Config is the full configuration document.
type Config struct {
	Mappings         Mappings         `json:"mappings"`
	LocationSettings LocationSettings `json:"location_settings"`
	Model            ModelConfig      `json:"model"`
}

// Mappings holds the static categorical mappings referenced by encoders.
type Mappings struct {
	// Levels maps level names to ordinal ranks.
	Levels map[string]int `json:"levels"`

	// LocationTargets maps anchor locations to cost zones (>= 1).
	// Zone 0 is reserved for unresolvable locations.
	LocationTargets map[string]int `json:"location_targets"`
}

// LocationSettings tunes the proximity zone resolver.
type LocationSettings struct {
	MaxDistanceKm float64 `json:"max_distance_km"`
}

// ModelConfig describes what to predict and how.
type ModelConfig struct {
	Targets   []string  `json:"targets"`
	Features  []Feature `json:"features"`
	Quantiles []Level   `json:"quantiles"`

	// SampleWeightK is the exponential recency decay rate. 0 gives every
	// row weight 1.
	SampleWeightK float64 `json:"sample_weight_k"`

	// RecencyColumn names the date column used for sample weighting.
	// Defaults to "Date".
	RecencyColumn string `json:"recency_column"`

	// MinTrainingRows is the per-target minimum row count after outlier
	// filtering. Targets below it are skipped. Defaults to 20.
	MinTrainingRows int `json:"min_training_rows"`

	Hyperparameters Hyperparameters `json:"hyperparameters"`
}

// Feature is one model input column with its encoding strategy and
// monotonic constraint (-1 decreasing, 0 none, 1 increasing).
type Feature struct {
	Name               string `json:"name"`
	Encoding           string `json:"encoding"`
	MonotoneConstraint int    `json:"monotone_constraint"`
}

// Level is a quantile level that unmarshals from either a JSON number
// (0.25) or a p-notation string ("p25").
type Level float64

// UnmarshalJSON implements json.Unmarshaler.
func (l *Level) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*l = Level(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("quantile level must be a number or p-notation string")
	}
	q, err := quantile.ParseLevel(s)
	if err != nil {
		return err
	}
	*l = Level(q)
	return nil
}

// Hyperparameters holds the training parameters and the optional outer
// hyperparameter search settings.
type Hyperparameters struct {
	Training TrainingParams `json:"training"`
	Search   SearchParams   `json:"search"`
}

// TrainingParams are the boosted-tree parameters used when search is
// disabled (or as the center of the search space when enabled).
type TrainingParams struct {
	Rounds         int     `json:"rounds"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinChildWeight float64 `json:"min_child_weight"`
	Lambda         float64 `json:"lambda"`
}

// SearchParams configures the optional hyperparameter search.
type SearchParams struct {
	Enabled            bool    `json:"enabled"`
	Trials             int     `json:"trials"`
	Seed               int64   `json:"seed"`
	ValidationFraction float64 `json:"validation_fraction"`
}

// Load reads and validates a configuration document from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Model.RecencyColumn == "" {
		c.Model.RecencyColumn = "Date"
	}
	if c.Model.MinTrainingRows == 0 {
		c.Model.MinTrainingRows = 20
	}
	for i := range c.Model.Features {
		if c.Model.Features[i].Encoding == "" {
			c.Model.Features[i].Encoding = EncodingNumeric
		}
	}

	t := &c.Model.Hyperparameters.Training
	if t.Rounds == 0 {
		t.Rounds = 100
	}
	if t.LearningRate == 0 {
		t.LearningRate = 0.1
	}
	if t.MaxDepth == 0 {
		t.MaxDepth = 4
	}
	if t.MinChildWeight == 0 {
		t.MinChildWeight = 1
	}
	if t.Lambda == 0 {
		t.Lambda = 1
	}

	s := &c.Model.Hyperparameters.Search
	if s.Trials == 0 {
		s.Trials = 20
	}
	if s.ValidationFraction == 0 {
		s.ValidationFraction = 0.2
	}
}

// Validate checks the internal consistency of the document. Dataset schema
// resolution is a separate step, see ValidateSchema.
func (c *Config) Validate() error {
	ranks := make(map[int]string, len(c.Mappings.Levels))
	for level, rank := range c.Mappings.Levels {
		if rank < 0 {
			return fmt.Errorf("%w: mappings.levels[%q]: rank %d is negative", ErrInvalidConfig, level, rank)
		}
		if other, dup := ranks[rank]; dup {
			return fmt.Errorf("%w: mappings.levels: rank %d assigned to both %q and %q", ErrInvalidConfig, rank, other, level)
		}
		ranks[rank] = level
	}

	for loc, zone := range c.Mappings.LocationTargets {
		if zone < 1 {
			return fmt.Errorf("%w: mappings.location_targets[%q]: zone %d must be >= 1", ErrInvalidConfig, loc, zone)
		}
	}

	if len(c.Mappings.LocationTargets) > 0 && c.LocationSettings.MaxDistanceKm <= 0 {
		return fmt.Errorf("%w: location_settings.max_distance_km must be > 0", ErrInvalidConfig)
	}

	if len(c.Model.Targets) == 0 {
		return fmt.Errorf("%w: model.targets cannot be empty", ErrInvalidConfig)
	}
	seenTargets := make(map[string]bool, len(c.Model.Targets))
	for _, target := range c.Model.Targets {
		if target == "" {
			return fmt.Errorf("%w: model.targets contains an empty name", ErrInvalidConfig)
		}
		if seenTargets[target] {
			return fmt.Errorf("%w: model.targets: duplicate target %q", ErrInvalidConfig, target)
		}
		seenTargets[target] = true
	}

	if len(c.Model.Features) == 0 {
		return fmt.Errorf("%w: model.features cannot be empty", ErrInvalidConfig)
	}
	seenFeatures := make(map[string]bool, len(c.Model.Features))
	for _, f := range c.Model.Features {
		if f.Name == "" {
			return fmt.Errorf("%w: model.features contains an empty name", ErrInvalidConfig)
		}
		if seenFeatures[f.Name] {
			return fmt.Errorf("%w: model.features: duplicate feature %q", ErrInvalidConfig, f.Name)
		}
		seenFeatures[f.Name] = true

		switch f.Encoding {
		case EncodingNumeric, EncodingOrdinal, EncodingOneHot, EncodingProximity, EncodingLabel:
		default:
			return fmt.Errorf("%w: model.features[%q]: unknown encoding %q", ErrInvalidConfig, f.Name, f.Encoding)
		}

		if f.MonotoneConstraint < -1 || f.MonotoneConstraint > 1 {
			return fmt.Errorf("%w: model.features[%q]: monotone_constraint %d must be -1, 0, or 1", ErrInvalidConfig, f.Name, f.MonotoneConstraint)
		}

		if f.Encoding == EncodingOrdinal && len(c.Mappings.Levels) == 0 {
			return fmt.Errorf("%w: model.features[%q]: ordinal encoding requires mappings.levels", ErrInvalidConfig, f.Name)
		}
		if f.Encoding == EncodingProximity && len(c.Mappings.LocationTargets) == 0 {
			return fmt.Errorf("%w: model.features[%q]: proximity encoding requires mappings.location_targets", ErrInvalidConfig, f.Name)
		}
	}

	if len(c.Model.Quantiles) == 0 {
		return fmt.Errorf("%w: model.quantiles cannot be empty", ErrInvalidConfig)
	}
	seenQuantiles := make(map[Level]bool, len(c.Model.Quantiles))
	for _, q := range c.Model.Quantiles {
		if q <= 0 || q >= 1 {
			return fmt.Errorf("%w: model.quantiles: level %v out of range (0, 1)", ErrInvalidConfig, float64(q))
		}
		if seenQuantiles[q] {
			return fmt.Errorf("%w: model.quantiles: duplicate level %v", ErrInvalidConfig, float64(q))
		}
		seenQuantiles[q] = true
	}

	if c.Model.SampleWeightK < 0 {
		return fmt.Errorf("%w: model.sample_weight_k must be >= 0", ErrInvalidConfig)
	}

	s := c.Model.Hyperparameters.Search
	if s.Enabled {
		if s.Trials < 1 {
			return fmt.Errorf("%w: model.hyperparameters.search.trials must be >= 1", ErrInvalidConfig)
		}
		if s.ValidationFraction <= 0 || s.ValidationFraction >= 1 {
			return fmt.Errorf("%w: model.hyperparameters.search.validation_fraction must be in (0, 1)", ErrInvalidConfig)
		}
	}

	return nil
}

// ValidateSchema checks that every configured feature, target, and the
// recency column resolve against the dataset's columns. Called before
// training starts so schema problems surface up front.
func (c *Config) ValidateSchema(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, col := range columns {
		present[col] = true
	}

	for _, f := range c.Model.Features {
		if !present[f.Name] {
			return fmt.Errorf("%w: feature %q not found in dataset schema", ErrInvalidConfig, f.Name)
		}
	}
	for _, target := range c.Model.Targets {
		if !present[target] {
			return fmt.Errorf("%w: target %q not found in dataset schema", ErrInvalidConfig, target)
		}
	}
	if c.Model.SampleWeightK > 0 && !present[c.Model.RecencyColumn] {
		return fmt.Errorf("%w: recency column %q not found in dataset schema", ErrInvalidConfig, c.Model.RecencyColumn)
	}
	return nil
}

// QuantileLevels returns the configured quantile levels in ascending order.
func (c *Config) QuantileLevels() []float64 {
	levels := make([]float64, len(c.Model.Quantiles))
	for i, q := range c.Model.Quantiles {
		levels[i] = float64(q)
	}
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0 && levels[j] < levels[j-1]; j-- {
			levels[j], levels[j-1] = levels[j-1], levels[j]
		}
	}
	return levels
}

// FeatureNames returns the configured feature names in order.
func (c *Config) FeatureNames() []string {
	names := make([]string, len(c.Model.Features))
	for i, f := range c.Model.Features {
		names[i] = f.Name
	}
	return names
}

// MonotoneConstraints returns the per-feature constraints in feature order.
func (c *Config) MonotoneConstraints() []int {
	constraints := make([]int, len(c.Model.Features))
	for i, f := range c.Model.Features {
		constraints[i] = f.MonotoneConstraint
	}
	return constraints
}
