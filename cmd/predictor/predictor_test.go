package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	predcfg "github.com/calibrant/payband/cmd/predictor/config"
	"github.com/calibrant/payband/cmd/predictor/metrics"
	"github.com/calibrant/payband/pkg/boost"
	"github.com/calibrant/payband/pkg/encode"
	"github.com/calibrant/payband/pkg/infer"
	"github.com/calibrant/payband/pkg/registry"
)

// Prometheus metrics register globally, so the whole test binary shares one
// instance.
var testMetrics = metrics.New()

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func storedArtifact(runID string, createdAt time.Time) registry.Artifact {
	return registry.Artifact{
		RunID:     runID,
		CreatedAt: createdAt,
		Encoder:   &encode.State{Columns: []string{"YearsOfExperience"}},
		Models: map[string]*boost.Ensemble{
			"BaseSalary_p50": {Alpha: 0.5, Base: 100000, LearningRate: 0.1},
		},
	}
}

func TestReload_FollowsLatest(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemoryStore()
	engine := infer.New(discard())
	cfg := &predcfg.Config{ReloadInterval: time.Second}
	p := NewPredictor(store, engine, cfg, discard(), testMetrics)

	if err := p.reload(ctx); err == nil {
		t.Error("reload() error = nil with empty registry, want error")
	}
	if engine.Ready() {
		t.Fatal("engine ready with empty registry")
	}

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, storedArtifact("run-1", base)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := p.reload(ctx); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	if got := engine.RunID(); got != "run-1" {
		t.Errorf("RunID() = %q, want run-1", got)
	}

	if err := store.Put(ctx, storedArtifact("run-2", base.Add(time.Hour))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := p.reload(ctx); err != nil {
		t.Fatalf("second reload() error = %v", err)
	}
	if got := engine.RunID(); got != "run-2" {
		t.Errorf("RunID() after new run = %q, want run-2", got)
	}
}

func TestReload_PinnedRunID(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemoryStore()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for _, a := range []registry.Artifact{
		storedArtifact("run-old", base),
		storedArtifact("run-new", base.Add(time.Hour)),
	} {
		if err := store.Put(ctx, a); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	engine := infer.New(discard())
	cfg := &predcfg.Config{ReloadInterval: time.Second, RunID: "run-old"}
	p := NewPredictor(store, engine, cfg, discard(), testMetrics)

	if err := p.reload(ctx); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	if got := engine.RunID(); got != "run-old" {
		t.Errorf("RunID() = %q, want pinned run-old", got)
	}

	// Another reload is a no-op, not a re-fetch of something newer.
	if err := p.reload(ctx); err != nil {
		t.Fatalf("second reload() error = %v", err)
	}
	if got := engine.RunID(); got != "run-old" {
		t.Errorf("RunID() after second reload = %q, want run-old", got)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *predcfg.Config {
		return &predcfg.Config{
			Listen:         ":8082",
			Registry:       "fs",
			ZoneCache:      "file",
			ReloadInterval: 30 * time.Second,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Validate(valid) error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*predcfg.Config)
	}{
		{"empty listen", func(c *predcfg.Config) { c.Listen = "" }},
		{"bad registry", func(c *predcfg.Config) { c.Registry = "s3" }},
		{"bad zone cache", func(c *predcfg.Config) { c.ZoneCache = "dynamo" }},
		{"zero reload interval", func(c *predcfg.Config) { c.ReloadInterval = 0 }},
		{"tls missing files", func(c *predcfg.Config) { c.TLS.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}
