package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	traincfg "github.com/calibrant/payband/cmd/trainer/config"
	"github.com/calibrant/payband/pkg/registry"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

const testModelConfig = `{
  "mappings": {"levels": {"Junior": 0, "Mid": 1, "Senior": 2}},
  "model": {
    "targets": ["BaseSalary"],
    "features": [
      {"name": "YearsOfExperience", "encoding": "numeric", "monotone_constraint": 1},
      {"name": "Level", "encoding": "ordinal", "monotone_constraint": 1}
    ],
    "quantiles": [0.25, 0.5, 0.75],
    "min_training_rows": 10,
    "hyperparameters": {"training": {"rounds": 15, "max_depth": 3}}
  }
}`

func writeTestInputs(t *testing.T, dir string) (configPath, dataPath string) {
	t.Helper()

	configPath = filepath.Join(dir, "model_config.json")
	if err := os.WriteFile(configPath, []byte(testModelConfig), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	var csv strings.Builder
	csv.WriteString("YearsOfExperience,Level,BaseSalary\n")
	levels := []string{"Junior", "Mid", "Senior"}
	for i := 0; i < 45; i++ {
		exp := i % 15
		pay := 55000 + 3000*exp + 9000*(i%3) + (i%5)*400
		fmt.Fprintf(&csv, "%d,%s,%d\n", exp, levels[i%3], pay)
	}
	dataPath = filepath.Join(dir, "salaries.csv")
	if err := os.WriteFile(dataPath, []byte(csv.String()), 0o644); err != nil {
		t.Fatalf("writing data: %v", err)
	}
	return configPath, dataPath
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	configPath, dataPath := writeTestInputs(t, dir)
	registryDir := filepath.Join(dir, "artifacts")

	cfg := &traincfg.Config{
		ConfigPath:  configPath,
		DataPath:    dataPath,
		Registry:    "fs",
		RegistryDir: registryDir,
		ZoneCache:   "memory",
	}

	runID, err := run(context.Background(), cfg, discard())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if runID == "" {
		t.Fatal("run() returned empty run id")
	}

	store, err := registry.NewFSStore(registryDir)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	artifact, found, err := store.Get(context.Background(), runID)
	if err != nil || !found {
		t.Fatalf("Get(%s) = found %v, err %v", runID, found, err)
	}

	for _, key := range []string{"BaseSalary_p25", "BaseSalary_p50", "BaseSalary_p75"} {
		if artifact.Models[key] == nil {
			t.Errorf("stored artifact missing model %q", key)
		}
	}
	if artifact.Encoder == nil || artifact.Encoder.Width() != 2 {
		t.Error("stored artifact encoder state incomplete")
	}
	if artifact.Config == nil || len(artifact.Config.Model.Targets) != 1 {
		t.Error("stored artifact config incomplete")
	}
}

func TestRun_MissingInputs(t *testing.T) {
	dir := t.TempDir()
	configPath, dataPath := writeTestInputs(t, dir)

	tests := []struct {
		name string
		cfg  *traincfg.Config
	}{
		{"config not found", &traincfg.Config{ConfigPath: filepath.Join(dir, "nope.json"), DataPath: dataPath, Registry: "memory", ZoneCache: "memory"}},
		{"data not found", &traincfg.Config{ConfigPath: configPath, DataPath: filepath.Join(dir, "nope.csv"), Registry: "memory", ZoneCache: "memory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(context.Background(), tt.cfg, discard()); err == nil {
				t.Error("run() error = nil, want error")
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *traincfg.Config {
		return &traincfg.Config{
			ConfigPath: "model_config.json",
			DataPath:   "salaries.csv",
			Registry:   "fs",
			ZoneCache:  "file",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Validate(valid) error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*traincfg.Config)
	}{
		{"missing config path", func(c *traincfg.Config) { c.ConfigPath = "" }},
		{"missing data path", func(c *traincfg.Config) { c.DataPath = "" }},
		{"bad registry", func(c *traincfg.Config) { c.Registry = "gcs" }},
		{"bad zone cache", func(c *traincfg.Config) { c.ZoneCache = "sqlite" }},
		{"tls missing files", func(c *traincfg.Config) { c.TLS.Enabled = true }},
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
