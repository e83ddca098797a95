// Package envs defines the cached metadata of one environment directory and the
// cheap change-detection check used to decide whether it must be re-queried.
package envs

import (
	"path/filepath"
	"time"
)

// Packages maps an installed package name to its version.
type Packages map[string]string

// Size is the on-disk size of an environment.
type Size struct {
	Bytes int64  `json:"bytes" yaml:"bytes"`
	Human string `json:"human" yaml:"human"`
}

// NewSize builds a Size with its human-readable form filled in.
func NewSize(bytes int64) Size {
	return Size{Bytes: bytes, Human: HumanSize(bytes)}
}

// Environment is an immutable snapshot of one environment's metadata. A refresh
// never mutates an Environment in place; it publishes a new value.
type Environment struct {
	Name        string           `json:"name" yaml:"name"`
	Path        string           `json:"path" yaml:"path"`
	FileCount   int              `json:"file_count" yaml:"file_count"`
	Packages    Result[Packages] `json:"packages" yaml:"packages"`
	Size        Result[Size]     `json:"size" yaml:"size"`
	RefreshedAt time.Time        `json:"refreshed_at,omitempty" yaml:"refreshed_at,omitempty"`
	Generation  uint64           `json:"generation" yaml:"generation"`
}

// NewEnvironment returns an empty entry for name under root.
func NewEnvironment(root, name string) *Environment {
	return &Environment{
		Name: name,
		Path: filepath.Join(root, name),
	}
}

// Populated reports whether the expensive fields have been queried at least once.
func (e *Environment) Populated() bool {
	return e.Generation > 0
}

// HasErrors reports whether either expensive field carries an error marker.
func (e *Environment) HasErrors() bool {
	return e.Packages.Failed() || e.Size.Failed()
}

// HasTransientErrors reports whether an expensive field failed for a reason
// that says nothing about the environment itself.
func (e *Environment) HasTransientErrors() bool {
	return e.Packages.Transient() || e.Size.Transient()
}

// NeedsRefresh compares the cached file count with a freshly observed one.
//
// This is a heuristic: changes that keep the number of files constant, such as
// a file rewritten in place, are not detected.
func NeedsRefresh(env *Environment, currentFileCount int) bool {
	return currentFileCount != env.FileCount
}
