// Package registry keeps the live inventory of environments under one root and
// refreshes their metadata selectively.
package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/internal/watch"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/grovetools/envwatch/pkg/query"
	"github.com/moby/patternmatcher"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultWorkers bounds the external queries running at once.
	DefaultWorkers = 4

	// DefaultShutdownGrace is how long in-flight queries may run after the
	// refresh context ends.
	DefaultShutdownGrace = 5 * time.Second
)

// Options configures a Registry.
type Options struct {
	Root          string
	Exclude       *patternmatcher.PatternMatcher
	Workers       int
	ShutdownGrace time.Duration
	Packages      query.PackageQuerier
	Sizes         query.SizeQuerier
	// Hint seeds entries from a previous run. Seeded entries are re-validated
	// by the cheap check before being trusted.
	Hint   *Snapshot
	Logger *logrus.Entry
}

// entry publishes one environment's current snapshot. Stores replace the whole
// value, so readers never observe fields from two refresh generations.
type entry struct {
	current atomic.Pointer[envs.Environment]
}

func newEntry(env *envs.Environment) *entry {
	e := &entry{}
	e.current.Store(env)
	return e
}

// Registry owns the set of environments under a root.
type Registry struct {
	root     string
	exclude  *patternmatcher.PatternMatcher
	workers  int
	grace    time.Duration
	packages query.PackageQuerier
	sizes    query.SizeQuerier
	logger   *logrus.Entry

	entries *xsync.MapOf[string, *entry]
	// locks serializes refreshes per environment name. A lock exists only
	// while some refresh holds or waits for it.
	locks *xsync.MapOf[string, *nameLock]
	// queries bounds external queries across every concurrent refresh.
	queries *semaphore.Weighted

	subMu       sync.Mutex
	subscribers map[chan Update]struct{}
}

// New creates an empty Registry. Most callers want Open.
func New(opts Options) *Registry {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		root:        filepath.Clean(opts.Root),
		exclude:     opts.Exclude,
		workers:     workers,
		grace:       grace,
		packages:    opts.Packages,
		sizes:       opts.Sizes,
		logger:      logger,
		entries:     xsync.NewMapOf[string, *entry](),
		locks:       xsync.NewMapOf[string, *nameLock](),
		queries:     semaphore.NewWeighted(int64(workers)),
		subscribers: make(map[chan Update]struct{}),
	}
}

// Open creates a Registry, discovers every environment directly under the root
// and runs one full refresh before returning.
func Open(ctx context.Context, opts Options) (*Registry, error) {
	r := New(opts)
	if err := r.Populate(ctx, opts.Hint); err != nil {
		return nil, err
	}
	return r, nil
}

// Root returns the environment root.
func (r *Registry) Root() string {
	return r.root
}

// Populate registers every environment under the root, seeding metadata from
// hint when it describes the same root, and refreshes them all.
func (r *Registry) Populate(ctx context.Context, hint *Snapshot) error {
	names, err := r.discover()
	if err != nil {
		return err
	}

	if hint != nil && filepath.Clean(hint.Root) != r.root {
		r.logger.WithField("snapshot_root", hint.Root).Warn("Ignoring snapshot taken for a different root")
		hint = nil
	}

	seeded := 0
	for _, name := range names {
		env := envs.NewEnvironment(r.root, name)
		if hint != nil {
			if cached, ok := hint.Environments[name]; ok {
				cached.Name = name
				cached.Path = env.Path
				env = &cached
				seeded++
			}
		}
		r.entries.Store(name, newEntry(env))
	}
	r.logger.WithField("envs", len(names)).WithField("seeded", seeded).Info("Registered environments")

	report := r.Refresh(ctx, names, false)
	r.logReport("populate", report)
	return nil
}

// discover lists the environment directories directly under the root.
func (r *Registry) discover() ([]string, error) {
	listing, err := os.ReadDir(r.root)
	if err != nil {
		return nil, errors.RootNotFound(r.root, err)
	}

	var names []string
	for _, de := range listing {
		name := de.Name()
		if watch.Excluded(r.exclude, name) {
			continue
		}
		if !de.IsDir() {
			// Follow symlinked environments.
			info, err := os.Stat(filepath.Join(r.root, name))
			if err != nil || !info.IsDir() {
				continue
			}
		}
		names = append(names, name)
	}
	return names, nil
}

// List returns every environment sorted by name. The returned values share
// their package maps with the registry and must not be modified.
func (r *Registry) List() []envs.Environment {
	result := make([]envs.Environment, 0, r.entries.Size())
	r.entries.Range(func(_ string, e *entry) bool {
		result = append(result, *e.current.Load())
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Get returns one environment.
func (r *Registry) Get(name string) (envs.Environment, bool) {
	e, ok := r.entries.Load(name)
	if !ok {
		return envs.Environment{}, false
	}
	return *e.current.Load(), true
}

// Len returns the number of registered environments.
func (r *Registry) Len() int {
	return r.entries.Size()
}
