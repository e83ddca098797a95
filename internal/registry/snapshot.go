package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/pkg/envs"
	"gopkg.in/yaml.v3"
)

const snapshotVersion = 1

// Snapshot is the persisted form of a registry, used as a warm-start hint.
type Snapshot struct {
	Version      int                         `yaml:"version"`
	Root         string                      `yaml:"root"`
	SavedAt      time.Time                   `yaml:"saved_at"`
	Environments map[string]envs.Environment `yaml:"environments"`
}

// Snapshot captures every registered environment.
func (r *Registry) Snapshot() *Snapshot {
	s := &Snapshot{
		Version:      snapshotVersion,
		Root:         r.root,
		SavedAt:      time.Now(),
		Environments: make(map[string]envs.Environment),
	}
	for _, env := range r.List() {
		if !env.Populated() {
			continue
		}
		s.Environments[env.Name] = env
	}
	return s
}

// LoadSnapshot reads a snapshot. A missing file yields (nil, nil).
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.SnapshotInvalid(path, err)
	}

	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.SnapshotInvalid(path, err)
	}
	if s.Version != snapshotVersion {
		return nil, errors.SnapshotInvalid(path, fmt.Errorf("unsupported version %d", s.Version))
	}
	return &s, nil
}

// Save writes the snapshot to path atomically.
func (s *Snapshot) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.yml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
