package geozone

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// ZoneUnknown is the reserved zone for locations that cannot be resolved:
// geocoding failed, or nothing configured lies within range.
const ZoneUnknown = 0

// Resolver maps location strings to cost zones.
//
// Resolution order: exact match against the configured anchor locations,
// then geographic proximity (nearest anchor within MaxDistanceKm), then
// ZoneUnknown. Every outcome is cached by the raw input string, so repeat
// resolutions are pure lookups with no geocoding call.
type Resolver struct {
	targets  map[string]int
	maxKm    float64
	geocoder Geocoder
	cache    Cache
	logger   *slog.Logger

	mu           sync.Mutex
	targetCoords map[string]Coord
	targetFailed map[string]bool
}

// NewResolver creates a Resolver. targets maps anchor location names to
// zones (>= 1); maxKm bounds the proximity fallback. cache may not be nil;
// use NewMemoryCache for ephemeral resolution.
func NewResolver(targets map[string]int, maxKm float64, geocoder Geocoder, cache Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		targets:      targets,
		maxKm:        maxKm,
		geocoder:     geocoder,
		cache:        cache,
		logger:       logger,
		targetCoords: make(map[string]Coord),
		targetFailed: make(map[string]bool),
	}
}

// Resolve maps a location string to its cost zone. Geocoding failures are
// absorbed: the location resolves to ZoneUnknown and that result is cached.
// The returned error reports cache backend failures only.
func (r *Resolver) Resolve(ctx context.Context, location string) (int, error) {
	if zone, found, err := r.cache.Get(ctx, location); err != nil {
		return ZoneUnknown, err
	} else if found {
		return zone, nil
	}

	zone := r.compute(ctx, location)

	if err := r.cache.Put(ctx, location, zone); err != nil {
		return zone, err
	}
	return zone, nil
}

// compute performs the actual resolution: exact match, then proximity.
func (r *Resolver) compute(ctx context.Context, location string) int {
	if zone, ok := r.targets[location]; ok {
		return zone
	}

	coord, err := r.geocoder.Geocode(ctx, location)
	if err != nil {
		r.logger.Warn("geocoding failed, using unknown zone", "location", location, "error", err)
		return ZoneUnknown
	}

	bestZone := ZoneUnknown
	bestName := ""
	bestKm := r.maxKm
	for _, name := range r.sortedTargetNames() {
		targetCoord, ok := r.targetCoord(ctx, name)
		if !ok {
			continue
		}

		km := haversineKm(coord, targetCoord)
		if km > bestKm {
			continue
		}
		zone := r.targets[name]

		// Ties on distance break by lowest zone, then name. Names are
		// visited in sorted order, so a strictly better candidate is
		// required to displace the incumbent at equal distance.
		if km < bestKm || bestName == "" || zone < r.targets[bestName] {
			bestKm = km
			bestZone = zone
			bestName = name
		}
	}

	if bestName == "" {
		r.logger.Debug("no anchor within range", "location", location, "max_km", r.maxKm)
		return ZoneUnknown
	}

	r.logger.Debug("resolved by proximity",
		"location", location,
		"anchor", bestName,
		"zone", bestZone,
		"distance_km", bestKm,
	)
	return bestZone
}

// targetCoord returns the memoized coordinates of an anchor location,
// geocoding it on first use. Anchors that fail to geocode are skipped for
// the lifetime of the resolver.
func (r *Resolver) targetCoord(ctx context.Context, name string) (Coord, bool) {
	r.mu.Lock()
	if coord, ok := r.targetCoords[name]; ok {
		r.mu.Unlock()
		return coord, true
	}
	if r.targetFailed[name] {
		r.mu.Unlock()
		return Coord{}, false
	}
	r.mu.Unlock()

	coord, err := r.geocoder.Geocode(ctx, name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.logger.Warn("failed to geocode anchor location", "anchor", name, "error", err)
		r.targetFailed[name] = true
		return Coord{}, false
	}
	r.targetCoords[name] = coord
	return coord, true
}

func (r *Resolver) sortedTargetNames() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
