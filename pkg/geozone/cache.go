package geozone

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Cache persists resolved zones keyed by the raw location string. Entries
// are append-only: a key always maps to the same computed zone, so
// concurrent first-time writes for the same key may race harmlessly.
type Cache interface {
	Get(ctx context.Context, location string) (zone int, found bool, err error)
	Put(ctx context.Context, location string, zone int) error
}

// MemoryCache is a process-local Cache, safe for concurrent use. Useful for
// tests and single-run tooling; it does not survive restarts.
type MemoryCache struct {
	mu    sync.RWMutex
	zones map[string]int
}

// NewMemoryCache creates an empty in-memory zone cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{zones: make(map[string]int)}
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, location string) (int, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	zone, found := c.zones[location]
	return zone, found, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(ctx context.Context, location string, zone int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones[location] = zone
	return nil
}

// Len returns the number of cached entries. Primarily for tests.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.zones)
}

// FileCache is a Cache backed by a JSON file, loaded once at construction
// and rewritten on every Put. It carries the cache across process runs for
// single-host deployments; use RedisCache when several instances share the
// cache.
type FileCache struct {
	path  string
	mu    sync.Mutex
	zones map[string]int
}

// NewFileCache loads the cache file at path, creating an empty cache when
// the file does not exist yet.
func NewFileCache(path string) (*FileCache, error) {
	c := &FileCache{path: path, zones: make(map[string]int)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read zone cache: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.zones); err != nil {
			return nil, fmt.Errorf("parse zone cache %s: %w", path, err)
		}
	}
	return c, nil
}

// Get implements Cache.
func (c *FileCache) Get(ctx context.Context, location string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	zone, found := c.zones[location]
	return zone, found, nil
}

// Put implements Cache. The full map is rewritten atomically via a rename.
func (c *FileCache) Put(ctx context.Context, location string, zone int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.zones[location] = zone

	data, err := json.MarshalIndent(c.zones, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal zone cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write zone cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace zone cache: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.zones)
}
