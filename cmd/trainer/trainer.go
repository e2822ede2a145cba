package main

import (
	"context"
	"fmt"
	"log/slog"

	traincfg "github.com/calibrant/payband/cmd/trainer/config"
	"github.com/calibrant/payband/pkg/config"
	"github.com/calibrant/payband/pkg/dataset"
	"github.com/calibrant/payband/pkg/geozone"
	"github.com/calibrant/payband/pkg/httpx"
	"github.com/calibrant/payband/pkg/registry"
	"github.com/calibrant/payband/pkg/train"
)

// run executes one training run end to end and returns the stored
// artifact's run id.
func run(ctx context.Context, cfg *traincfg.Config, logger *slog.Logger) (string, error) {
	modelCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("loading model config: %w", err)
	}

	frame, err := dataset.LoadCSV(cfg.DataPath)
	if err != nil {
		return "", fmt.Errorf("loading dataset: %w", err)
	}
	logger.Info("dataset loaded", "path", cfg.DataPath, "rows", frame.Len(), "columns", len(frame.Columns))

	resolver, closeResolver, err := buildResolver(cfg, modelCfg, logger)
	if err != nil {
		return "", err
	}
	defer closeResolver()

	var searcher train.Searcher
	if s := modelCfg.Model.Hyperparameters.Search; s.Enabled {
		searcher = &train.RandomSearcher{
			Trials:             s.Trials,
			Seed:               s.Seed,
			ValidationFraction: s.ValidationFraction,
		}
		logger.Info("hyperparameter search enabled", "trials", s.Trials, "seed", s.Seed)
	}

	result, err := train.New(modelCfg, resolver, searcher, logger).Run(ctx, frame)
	if err != nil {
		return "", fmt.Errorf("training: %w", err)
	}

	store, closeStore, err := buildRegistry(cfg)
	if err != nil {
		return "", err
	}
	defer closeStore()

	artifact := registry.NewArtifact(modelCfg, result)
	if err := store.Put(ctx, artifact); err != nil {
		return "", fmt.Errorf("storing artifact: %w", err)
	}

	logger.Info("training run complete",
		"run_id", artifact.RunID,
		"models", len(result.Models),
		"skipped_targets", len(result.Skipped),
		"rows_trained", result.TrainedRows,
		"rows_dropped", result.Outliers.TotalDropped,
	)
	for target, reason := range result.Skipped {
		logger.Warn("target skipped", "target", target, "reason", reason)
	}
	return artifact.RunID, nil
}

// buildResolver wires the zone resolver, or returns nil when the model
// config defines no anchor locations.
func buildResolver(cfg *traincfg.Config, modelCfg *config.Config, logger *slog.Logger) (*geozone.Resolver, func(), error) {
	noop := func() {}
	if len(modelCfg.Mappings.LocationTargets) == 0 {
		return nil, noop, nil
	}

	httpClient, err := httpx.NewClient(cfg.TLS, cfg.GeocoderTimeout)
	if err != nil {
		return nil, noop, fmt.Errorf("building geocoder client: %w", err)
	}
	geocoder := &geozone.NominatimClient{
		BaseURL:    cfg.GeocoderURL,
		UserAgent:  cfg.GeocoderAgent,
		Timeout:    cfg.GeocoderTimeout,
		HTTPClient: httpClient,
	}

	var cache geozone.Cache
	closer := noop
	switch cfg.ZoneCache {
	case "memory":
		cache = geozone.NewMemoryCache()
	case "file":
		fc, err := geozone.NewFileCache(cfg.ZoneCachePath)
		if err != nil {
			return nil, noop, fmt.Errorf("opening zone cache: %w", err)
		}
		cache = fc
	case "redis":
		rc, err := geozone.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix+":zone")
		if err != nil {
			return nil, noop, fmt.Errorf("connecting zone cache: %w", err)
		}
		cache = rc
		closer = func() {
			if err := rc.Close(); err != nil {
				logger.Error("failed to close zone cache", "error", err)
			}
		}
	}

	resolver := geozone.NewResolver(
		modelCfg.Mappings.LocationTargets,
		modelCfg.LocationSettings.MaxDistanceKm,
		geocoder,
		cache,
		logger,
	)
	return resolver, closer, nil
}

// buildRegistry wires the artifact store for the configured backend.
func buildRegistry(cfg *traincfg.Config) (registry.Store, func(), error) {
	noop := func() {}
	switch cfg.Registry {
	case "memory":
		return registry.NewMemoryStore(), noop, nil
	case "fs":
		store, err := registry.NewFSStore(cfg.RegistryDir)
		if err != nil {
			return nil, noop, fmt.Errorf("opening artifact registry: %w", err)
		}
		return store, noop, nil
	case "redis":
		store, err := registry.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting artifact registry: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown registry backend %q", cfg.Registry)
	}
}
