// Package storage keeps versioned collaborative model snapshots on disk.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"budget-meal-planner/internal/collab"
	"budget-meal-planner/internal/shared"

	"github.com/goccy/go-json"
)

const filePrefix = "model_v"

// ModelStore provides file-based storage for model snapshots. Each version is
// kept in its own file.
type ModelStore struct {
	basePath string
}

// NewModelStore creates a new ModelStore and ensures the base directory exists.
func NewModelStore(basePath string) (*ModelStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &ModelStore{basePath: basePath}, nil
}

// Path returns the directory snapshots are written to.
func (s *ModelStore) Path() string {
	return s.basePath
}

func (s *ModelStore) versionPath(version int) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%s%d.json", filePrefix, version))
}

// Save writes a snapshot. The file is written under a temporary name and
// renamed so a reader never sees a partial snapshot.
func (s *ModelStore) Save(snap collab.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal model snapshot: %w", err)
	}

	path := s.versionPath(snap.Version)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write model snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move model snapshot into place: %w", err)
	}
	return nil
}

// Load retrieves a specific snapshot version.
func (s *ModelStore) Load(version int) (*collab.Snapshot, error) {
	data, err := os.ReadFile(s.versionPath(version))
	if os.IsNotExist(err) {
		return nil, &shared.NotFoundError{Kind: "model version", ID: strconv.Itoa(version)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model snapshot: %w", err)
	}

	var snap collab.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model snapshot: %w", err)
	}
	return &snap, nil
}

// Exists checks if a snapshot version exists.
func (s *ModelStore) Exists(version int) bool {
	_, err := os.Stat(s.versionPath(version))
	return !os.IsNotExist(err)
}

// Versions lists the stored versions in ascending order.
func (s *ModelStore) Versions() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(s.basePath, filePrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob model snapshots: %w", err)
	}

	versions := make([]int, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), filePrefix), ".json")
		v, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// LoadLatest retrieves the highest stored version.
func (s *ModelStore) LoadLatest() (*collab.Snapshot, error) {
	versions, err := s.Versions()
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, &shared.NotFoundError{Kind: "model version", ID: "latest"}
	}
	return s.Load(versions[len(versions)-1])
}

// RemoveStaleVersions deletes all but the newest keep versions.
func (s *ModelStore) RemoveStaleVersions(keep int) error {
	versions, err := s.Versions()
	if err != nil {
		return err
	}
	if len(versions) <= keep {
		return nil
	}
	for _, v := range versions[:len(versions)-keep] {
		if err := os.Remove(s.versionPath(v)); err != nil {
			return fmt.Errorf("failed to remove stale snapshot v%d: %w", v, err)
		}
	}
	return nil
}
