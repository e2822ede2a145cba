// Package registry persists trained model artifacts. An artifact bundles
// everything inference needs: the configuration, the fitted encoder state,
// and every boosted quantile model from one training run.
package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calibrant/payband/pkg/boost"
	"github.com/calibrant/payband/pkg/config"
	"github.com/calibrant/payband/pkg/encode"
	"github.com/calibrant/payband/pkg/train"
)

// Artifact is one versioned training run. RunID is a UUID assigned at
// creation; artifacts are immutable once stored.
type Artifact struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`

	Config  *config.Config             `json:"config"`
	Encoder *encode.State              `json:"encoder"`
	Models  map[string]*boost.Ensemble `json:"models"`

	// Params records the hyperparameters each model was trained with.
	Params map[string]boost.Params `json:"params,omitempty"`

	// Skipped maps targets that were not trained to the reason.
	Skipped map[string]string `json:"skipped,omitempty"`

	TrainedRows int               `json:"trained_rows"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewArtifact wraps a training result into a storable artifact with a
// fresh run id.
func NewArtifact(cfg *config.Config, result *train.Result) Artifact {
	return Artifact{
		RunID:       uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Config:      cfg,
		Encoder:     result.Encoder,
		Models:      result.Models,
		Params:      result.Params,
		Skipped:     result.Skipped,
		TrainedRows: result.TrainedRows,
	}
}

// Store is the artifact persistence interface.
//
// Get and Latest report found = false, not an error, when nothing matches.
// List returns run ids newest first.
type Store interface {
	Put(ctx context.Context, artifact Artifact) error
	Get(ctx context.Context, runID string) (Artifact, bool, error)
	Latest(ctx context.Context) (Artifact, bool, error)
	List(ctx context.Context) ([]string, error)
}
