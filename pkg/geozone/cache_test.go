package geozone

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if _, found, err := cache.Get(ctx, "nowhere"); err != nil || found {
		t.Fatalf("Get(miss) = found %v, err %v", found, err)
	}

	if err := cache.Put(ctx, "Austin, TX", 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	zone, found, err := cache.Get(ctx, "Austin, TX")
	if err != nil || !found || zone != 2 {
		t.Errorf("Get() = (%d, %v, %v), want (2, true, nil)", zone, found, err)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestFileCache_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	ctx := context.Background()

	first, err := NewFileCache(path)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	if err := first.Put(ctx, "Newark, NJ", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := first.Put(ctx, "Boise, ID", ZoneUnknown); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A second instance simulates the next process run.
	second, err := NewFileCache(path)
	if err != nil {
		t.Fatalf("NewFileCache(reload) error = %v", err)
	}
	if second.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", second.Len())
	}

	zone, found, err := second.Get(ctx, "Newark, NJ")
	if err != nil || !found || zone != 1 {
		t.Errorf("Get(Newark) = (%d, %v, %v), want (1, true, nil)", zone, found, err)
	}
	zone, found, err = second.Get(ctx, "Boise, ID")
	if err != nil || !found || zone != ZoneUnknown {
		t.Errorf("Get(Boise) = (%d, %v, %v), want (0, true, nil)", zone, found, err)
	}
}

func TestFileCache_MissingFileStartsEmpty(t *testing.T) {
	cache, err := NewFileCache(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cache.Len())
	}
}
