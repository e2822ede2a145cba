package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	predcfg "github.com/calibrant/payband/cmd/predictor/config"
	"github.com/calibrant/payband/cmd/predictor/metrics"
	"github.com/calibrant/payband/pkg/config"
	"github.com/calibrant/payband/pkg/geozone"
	"github.com/calibrant/payband/pkg/httpx"
	"github.com/calibrant/payband/pkg/infer"
	"github.com/calibrant/payband/pkg/registry"
)

// Predictor keeps the inference engine loaded with the right artifact,
// polling the registry for new runs unless a run id is pinned.
type Predictor struct {
	store   registry.Store
	engine  *infer.Engine
	cfg     *predcfg.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	resolvers map[string]*geozone.Resolver // keyed by run id
}

// NewPredictor wires the reload loop around an engine and a registry.
func NewPredictor(store registry.Store, engine *infer.Engine, cfg *predcfg.Config, logger *slog.Logger, m *metrics.Metrics) *Predictor {
	return &Predictor{
		store:     store,
		engine:    engine,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		resolvers: make(map[string]*geozone.Resolver),
	}
}

// Run loads the initial artifact and then polls for updates until the
// context is canceled. A failed initial load is not fatal: the predictor
// keeps serving 503 until an artifact appears.
func (p *Predictor) Run(ctx context.Context) error {
	if err := p.reload(ctx); err != nil {
		p.logger.Warn("initial artifact load failed, serving unready", "error", err)
		p.metrics.ErrorsTotal.WithLabelValues("reload", "initial_load").Inc()
	}

	ticker := time.NewTicker(p.cfg.ReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.reload(ctx); err != nil {
				p.logger.Error("artifact reload failed", "error", err)
				p.metrics.ErrorsTotal.WithLabelValues("reload", "poll").Inc()
			}
			if loadedAt := p.engine.LoadedAt(); !loadedAt.IsZero() {
				p.metrics.ModelAgeSeconds.Set(time.Since(loadedAt).Seconds())
			}
		}
	}
}

// reload fetches the pinned or latest artifact and swaps it in when it
// differs from what is currently loaded.
func (p *Predictor) reload(ctx context.Context) error {
	var artifact registry.Artifact
	var found bool
	var err error

	if p.cfg.RunID != "" {
		if p.engine.RunID() == p.cfg.RunID {
			return nil
		}
		artifact, found, err = p.store.Get(ctx, p.cfg.RunID)
	} else {
		artifact, found, err = p.store.Latest(ctx)
	}
	if err != nil {
		return fmt.Errorf("fetching artifact: %w", err)
	}
	if !found {
		return fmt.Errorf("no artifact available")
	}
	if artifact.RunID == p.engine.RunID() {
		return nil
	}

	resolver, err := p.resolverFor(artifact)
	if err != nil {
		return err
	}

	p.engine.Load(artifact, resolver)
	p.metrics.ModelReloads.Inc()
	return nil
}

// resolverFor builds (and memoizes) the zone resolver for an artifact's
// anchor locations. Artifacts with no proximity features get nil.
func (p *Predictor) resolverFor(artifact registry.Artifact) (*geozone.Resolver, error) {
	if artifact.Config == nil || len(artifact.Config.Mappings.LocationTargets) == 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.resolvers[artifact.RunID]; ok {
		return r, nil
	}

	resolver, err := buildResolver(p.cfg, artifact.Config, p.logger)
	if err != nil {
		return nil, err
	}
	p.resolvers[artifact.RunID] = resolver
	return resolver, nil
}

// buildResolver wires the geocoder and zone cache for one model config.
func buildResolver(cfg *predcfg.Config, modelCfg *config.Config, logger *slog.Logger) (*geozone.Resolver, error) {
	httpClient, err := httpx.NewClient(cfg.TLS, cfg.GeocoderTimeout)
	if err != nil {
		return nil, fmt.Errorf("building geocoder client: %w", err)
	}
	geocoder := &geozone.NominatimClient{
		BaseURL:    cfg.GeocoderURL,
		UserAgent:  cfg.GeocoderAgent,
		Timeout:    cfg.GeocoderTimeout,
		HTTPClient: httpClient,
	}

	var cache geozone.Cache
	switch cfg.ZoneCache {
	case "memory":
		cache = geozone.NewMemoryCache()
	case "file":
		fc, err := geozone.NewFileCache(cfg.ZoneCachePath)
		if err != nil {
			return nil, fmt.Errorf("opening zone cache: %w", err)
		}
		cache = fc
	case "redis":
		rc, err := geozone.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix+":zone")
		if err != nil {
			return nil, fmt.Errorf("connecting zone cache: %w", err)
		}
		cache = rc
	}

	return geozone.NewResolver(
		modelCfg.Mappings.LocationTargets,
		modelCfg.LocationSettings.MaxDistanceKm,
		geocoder,
		cache,
		logger,
	), nil
}

// buildRegistry wires the artifact store for the configured backend.
func buildRegistry(cfg *predcfg.Config) (registry.Store, func(), error) {
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
