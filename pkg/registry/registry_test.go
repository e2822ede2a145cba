package registry

import (
	"context"
	"testing"
	"time"

	"github.com/calibrant/payband/pkg/boost"
	"github.com/calibrant/payband/pkg/config"
	"github.com/calibrant/payband/pkg/encode"
	"github.com/calibrant/payband/pkg/train"
)

func testArtifact(runID string, createdAt time.Time) Artifact {
	return Artifact{
		RunID:     runID,
		CreatedAt: createdAt,
		Encoder:   &encode.State{Columns: []string{"YearsOfExperience"}},
		Models: map[string]*boost.Ensemble{
			"BaseSalary_p50": {Alpha: 0.5, Base: 95000, LearningRate: 0.1},
		},
		TrainedRows: 120,
	}
}

// storeUnderTest runs the Store contract against each backend.
func storeUnderTest(t *testing.T, name string, store Store) {
	t.Run(name, func(t *testing.T) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		if _, found, err := store.Latest(ctx); err != nil || found {
			t.Fatalf("Latest(empty) = found %v, err %v; want not found, nil", found, err)
		}

		older := testArtifact("run-a", base)
		newer := testArtifact("run-b", base.Add(time.Hour))
		for _, a := range []Artifact{older, newer} {
			if err := store.Put(ctx, a); err != nil {
				t.Fatalf("Put(%s) error = %v", a.RunID, err)
			}
		}

		got, found, err := store.Get(ctx, "run-a")
		if err != nil || !found {
			t.Fatalf("Get(run-a) = found %v, err %v", found, err)
		}
		if got.TrainedRows != 120 {
			t.Errorf("TrainedRows = %d, want 120", got.TrainedRows)
		}
		if got.Models["BaseSalary_p50"] == nil || got.Models["BaseSalary_p50"].Base != 95000 {
			t.Errorf("Models[BaseSalary_p50] = %+v, want Base 95000", got.Models["BaseSalary_p50"])
		}

		if _, found, err := store.Get(ctx, "run-z"); err != nil || found {
			t.Errorf("Get(run-z) = found %v, err %v; want not found, nil", found, err)
		}

		latest, found, err := store.Latest(ctx)
		if err != nil || !found {
			t.Fatalf("Latest() = found %v, err %v", found, err)
		}
		if latest.RunID != "run-b" {
			t.Errorf("Latest().RunID = %q, want run-b", latest.RunID)
		}

		ids, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(ids) != 2 || ids[0] != "run-b" || ids[1] != "run-a" {
			t.Errorf("List() = %v, want [run-b run-a]", ids)
		}

		if err := store.Put(ctx, Artifact{}); err == nil {
			t.Error("Put(no run id) error = nil, want error")
		}
	})
}

func TestStores(t *testing.T) {
	storeUnderTest(t, "memory", NewMemoryStore())

	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	storeUnderTest(t, "fs", fs)
}

func TestFSStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	artifact := testArtifact("run-persist", time.Now().UTC())
	if err := first.Put(ctx, artifact); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	second, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("reopen NewFSStore() error = %v", err)
	}
	got, found, err := second.Get(ctx, "run-persist")
	if err != nil || !found {
		t.Fatalf("Get() after reopen = found %v, err %v", found, err)
	}
	if got.RunID != "run-persist" {
		t.Errorf("RunID = %q, want run-persist", got.RunID)
	}
}

func TestFSStore_RejectsPathTraversal(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	if _, _, err := fs.Get(context.Background(), "../escape"); err == nil {
		t.Error("Get(traversal id) error = nil, want error")
	}
	if err := fs.Put(context.Background(), testArtifact("../escape", time.Now())); err == nil {
		t.Error("Put(traversal id) error = nil, want error")
	}
}

func TestNewArtifact(t *testing.T) {
	cfg := &config.Config{}
	result := &train.Result{
		Models:      map[string]*boost.Ensemble{"BaseSalary_p50": {Alpha: 0.5}},
		Encoder:     &encode.State{Columns: []string{"Level"}},
		Skipped:     map[string]string{"Bonus": "3 usable rows, need 20"},
		TrainedRows: 40,
	}

	a := NewArtifact(cfg, result)
	if a.RunID == "" {
		t.Error("RunID empty, want generated uuid")
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt zero, want set")
	}
	if a.TrainedRows != 40 || len(a.Models) != 1 || a.Skipped["Bonus"] == "" {
		t.Errorf("artifact fields not carried over: %+v", a)
	}

	b := NewArtifact(cfg, result)
	if b.RunID == a.RunID {
		t.Error("two artifacts share a run id")
	}
}
