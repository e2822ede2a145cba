package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for single-process deployments and
// tests.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[string]Artifact)}
}

func (s *MemoryStore) Put(ctx context.Context, artifact Artifact) error {
	if artifact.RunID == "" {
		return errors.New("artifact run id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifact.RunID] = artifact
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, runID string) (Artifact, bool, error) {
	if runID == "" {
		return Artifact{}, false, errors.New("run id required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[runID]
	return a, ok, nil
}

func (s *MemoryStore) Latest(ctx context.Context) (Artifact, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest Artifact
	found := false
	for _, a := range s.artifacts {
		if !found || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	ids := make([]string, len(all))
	for i, a := range all {
		ids[i] = a.RunID
	}
	return ids, nil
}
