package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore keeps one JSON file per artifact under a directory. Writes go
// through a temp file and rename so a crash never leaves a torn artifact.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("registry directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

func validRunID(runID string) error {
	if runID == "" {
		return errors.New("run id required")
	}
	for _, c := range runID {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid run id %q: only alphanumeric, hyphens, and underscores allowed", runID)
		}
	}
	return nil
}

func (s *FSStore) Put(ctx context.Context, artifact Artifact) error {
	if err := validRunID(artifact.RunID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp artifact file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing artifact file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(artifact.RunID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming artifact file: %w", err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, runID string) (Artifact, bool, error) {
	if err := validRunID(runID); err != nil {
		return Artifact{}, false, err
	}

	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, false, nil
		}
		return Artifact{}, false, fmt.Errorf("reading artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return Artifact{}, false, fmt.Errorf("unmarshaling artifact %s: %w", runID, err)
	}
	return artifact, true, nil
}

func (s *FSStore) Latest(ctx context.Context) (Artifact, bool, error) {
	all, err := s.load(ctx)
	if err != nil {
		return Artifact{}, false, err
	}
	if len(all) == 0 {
		return Artifact{}, false, nil
	}
	return all[0], true, nil
}

func (s *FSStore) List(ctx context.Context) ([]string, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(all))
	for i, a := range all {
		ids[i] = a.RunID
	}
	return ids, nil
}

// load reads every artifact in the directory, newest first.
func (s *FSStore) load(ctx context.Context) ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading registry directory: %w", err)
	}

	var all []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		runID := strings.TrimSuffix(entry.Name(), ".json")
		artifact, ok, err := s.Get(ctx, runID)
		if err != nil {
			return nil, err
		}
		if ok {
			all = append(all, artifact)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}
