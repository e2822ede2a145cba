// Command trainer builds salary quantile models from a CSV dataset.
//
// The trainer runs one end-to-end pipeline:
//  1. Loads the model configuration and the training data
//  2. Drops outlier rows per target using the IQR rule
//  3. Fits the feature encoder, resolving locations to cost zones
//  4. Trains one boosted model per (target, quantile) pair with
//     recency-decayed sample weights and monotone constraints
//  5. Stores the resulting artifact in the configured registry
//
// Usage:
//
//	trainer \
//	  -config=model_config.json \
//	  -data=salaries.csv \
//	  -registry=fs -registry-dir=./artifacts
//
// Environment variables:
//
//	CONFIG_PATH     - Model configuration JSON file (required)
//	DATA_PATH       - Training dataset CSV file (required)
//	REGISTRY        - Artifact registry backend: fs, memory, redis (default: fs)
//	REGISTRY_DIR    - Artifact directory for the fs registry
//	REDIS_ADDR      - Redis server address
//	ZONE_CACHE      - Zone cache backend: file, memory, redis (default: file)
//	ZONE_CACHE_PATH - Zone cache file path
//	GEOCODER_URL    - Nominatim-compatible search endpoint
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/calibrant/payband/cmd/trainer/config"
	"github.com/calibrant/payband/cmd/trainer/logger"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	log.Info("starting payband trainer",
		"version", version,
		"config", cfg.ConfigPath,
		"data", cfg.DataPath,
		"registry", cfg.Registry,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runID, err := run(ctx, cfg, log)
	if err != nil {
		log.Error("training failed", "error", err)
		os.Exit(1)
	}

	log.Info("artifact stored", "run_id", runID)
}
