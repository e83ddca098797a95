package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/grovetools/envwatch/internal/watch"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Report summarizes one refresh cycle.
type Report struct {
	Refreshed []string `json:"refreshed"`
	Skipped   []string `json:"skipped"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Failed    []string `json:"failed"`
}

// Changed reports whether the cycle published anything.
func (r Report) Changed() bool {
	return len(r.Refreshed) > 0 || len(r.Removed) > 0 || len(r.Added) > 0
}

type outcome int

const (
	outcomeIgnored outcome = iota
	outcomeSkipped
	outcomeStale
	outcomeRemoved
)

// check is the result of the cheap phase for one name.
type check struct {
	name    string
	path    string
	outcome outcome
	added   bool
	count   int
	prev    *envs.Environment
	entry   *entry
}

// OnBatch refreshes the environments named in a debounced batch.
func (r *Registry) OnBatch(ctx context.Context, batch []string) {
	report := r.Refresh(ctx, batch, false)
	r.logReport("batch", report)
}

// RefreshAll refreshes every registered environment and every directory
// currently under the root. It returns how many environments were re-queried.
func (r *Registry) RefreshAll(ctx context.Context, force bool) (int, error) {
	names, err := r.discover()
	if err != nil {
		return 0, err
	}
	r.entries.Range(func(name string, _ *entry) bool {
		names = append(names, name)
		return true
	})

	report := r.Refresh(ctx, names, force)
	r.logReport("full", report)
	return len(report.Refreshed), nil
}

// Refresh runs the cheap check for every name and re-queries the stale ones.
// Unless force is set, an environment whose file count is unchanged keeps its
// cached metadata. Names whose directory no longer exists are removed; names
// with a directory but no entry are added.
func (r *Registry) Refresh(ctx context.Context, names []string, force bool) Report {
	names = uniqueSorted(names)
	if len(names) == 0 {
		return Report{}
	}

	unlock := r.lockNames(names)
	defer unlock()

	qctx, release := graceContext(ctx, r.grace)
	defer release()

	checks := make([]check, len(names))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, name := range names {
		g.Go(func() error {
			checks[i] = r.cheapCheck(name, force)
			return nil
		})
	}
	_ = g.Wait()

	var report Report
	var stale []*check
	for i := range checks {
		c := &checks[i]
		if c.added {
			report.Added = append(report.Added, c.name)
		}
		switch c.outcome {
		case outcomeSkipped:
			report.Skipped = append(report.Skipped, c.name)
		case outcomeRemoved:
			report.Removed = append(report.Removed, c.name)
		case outcomeStale:
			stale = append(stale, c)
		}
	}

	if len(stale) > 0 {
		r.refreshStale(qctx, stale, &report)
	}

	if report.Changed() {
		r.publish(Update{Report: report})
	}
	return report
}

// cheapCheck decides whether name needs the expensive refresh.
func (r *Registry) cheapCheck(name string, force bool) check {
	c := check{name: name, path: filepath.Join(r.root, name)}
	logger := r.logger.WithField("env", name)

	if watch.Excluded(r.exclude, name) {
		return c
	}

	info, err := os.Stat(c.path)
	if err != nil || !info.IsDir() {
		if _, loaded := r.entries.LoadAndDelete(name); loaded {
			logger.Info("Environment removed")
			c.outcome = outcomeRemoved
		}
		return c
	}

	e, loaded := r.entries.LoadOrCompute(name, func() *entry {
		return newEntry(envs.NewEnvironment(r.root, name))
	})
	if !loaded {
		logger.Info("Environment added")
		c.added = true
	}

	count, err := envs.CountFiles(c.path)
	if err != nil {
		// The directory vanished between the stat and the walk.
		if errors.Is(err, fs.ErrNotExist) {
			r.entries.Delete(name)
			logger.Info("Environment removed")
			c.outcome = outcomeRemoved
			c.added = false
			return c
		}
		logger.WithError(err).Warn("Failed to count files")
	}

	c.entry = e
	c.count = count
	c.prev = e.current.Load()

	if !force && c.prev.Populated() && !c.prev.HasTransientErrors() && !envs.NeedsRefresh(c.prev, count) {
		logger.WithField("files", count).Debug("File count unchanged")
		c.outcome = outcomeSkipped
		return c
	}

	logger.WithField("cached_files", c.prev.FileCount).WithField("files", count).Debug("Environment is stale")
	c.outcome = outcomeStale
	return c
}

// refreshStale runs one package query per environment and a single batched
// size query, each holding a slot of the registry-wide query limit, then
// publishes new snapshots.
func (r *Registry) refreshStale(ctx context.Context, stale []*check, report *Report) {
	paths := make([]string, len(stale))
	for i, c := range stale {
		paths[i] = c.path
	}

	packages := make([]envs.Result[envs.Packages], len(stale))
	var sizes []envs.Result[envs.Size]

	var g errgroup.Group
	g.SetLimit(r.workers)
	g.Go(func() error {
		if err := r.queries.Acquire(ctx, 1); err != nil {
			sizes = alignSizes(paths, envs.Err[[]int64](envs.ErrCancelled, "%v", err))
			return nil
		}
		defer r.queries.Release(1)
		sizes = alignSizes(paths, r.sizes.Sizes(ctx, paths))
		return nil
	})
	for i, c := range stale {
		g.Go(func() error {
			if err := r.queries.Acquire(ctx, 1); err != nil {
				packages[i] = envs.Err[envs.Packages](envs.ErrCancelled, "%v", err)
				return nil
			}
			defer r.queries.Release(1)
			packages[i] = r.packages.Packages(ctx, c.path)
			return nil
		})
	}
	_ = g.Wait()

	now := time.Now()
	for i, c := range stale {
		logger := r.logger.WithField("env", c.name)
		if cancelled(packages[i]) || cancelled(sizes[i]) {
			// Only reached after the shutdown grace expired. The file count
			// stays at its previous value, not the one just observed, so the
			// next cycle sees the environment as stale again.
			logger.Debug("Refresh cancelled before completion")
			continue
		}

		next := &envs.Environment{
			Name:        c.name,
			Path:        c.path,
			FileCount:   c.count,
			Packages:    packages[i],
			Size:        sizes[i],
			RefreshedAt: now,
			Generation:  c.prev.Generation + 1,
		}
		c.entry.current.Store(next)
		report.Refreshed = append(report.Refreshed, c.name)

		if next.HasErrors() {
			report.Failed = append(report.Failed, c.name)
			if next.Packages.Failed() {
				logger.WithField("error", next.Packages.Err.Error()).Warn("Package query failed")
			}
			if next.Size.Failed() {
				logger.WithField("error", next.Size.Err.Error()).Warn("Size query failed")
			}
		}
	}
}

// alignSizes pairs a batched size result with the paths it was queried for.
// The pairing is positional, so a result whose length differs from the input
// marks every path as misaligned rather than attributing sizes to the wrong
// environment.
func alignSizes(paths []string, res envs.Result[[]int64]) []envs.Result[envs.Size] {
	out := make([]envs.Result[envs.Size], len(paths))
	if res.Failed() {
		for i := range out {
			out[i] = envs.Result[envs.Size]{Err: res.Err}
		}
		return out
	}

	values := res.Value
	if len(values) != len(paths) {
		for i := range out {
			out[i] = envs.Err[envs.Size](envs.ErrMisaligned, "size query returned %d results for %d paths", len(values), len(paths))
		}
		return out
	}

	for i, v := range values {
		out[i] = envs.Ok(envs.NewSize(v))
	}
	return out
}

func cancelled[T any](res envs.Result[T]) bool {
	return res.Failed() && res.Err.Kind == envs.ErrCancelled
}

// nameLock is a per-name refresh lock. refs counts the refreshes holding or
// waiting for it and is only changed inside locks.Compute.
type nameLock struct {
	mu   sync.Mutex
	refs int
}

// lockNames acquires the refresh lock of every name in sorted order and
// returns a function releasing them. A lock is dropped from the table once no
// refresh references it.
func (r *Registry) lockNames(names []string) func() {
	held := make([]*nameLock, 0, len(names))
	for _, name := range names {
		l, _ := r.locks.Compute(name, func(l *nameLock, loaded bool) (*nameLock, bool) {
			if !loaded {
				l = &nameLock{}
			}
			l.refs++
			return l, false
		})
		l.mu.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			r.locks.Compute(names[i], func(l *nameLock, loaded bool) (*nameLock, bool) {
				l.refs--
				return l, l.refs == 0
			})
		}
	}
}

// graceContext derives a context for external queries that outlives ctx by
// grace. Queries started before shutdown get a chance to finish.
func graceContext(ctx context.Context, grace time.Duration) (context.Context, func()) {
	qctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var timer *time.Timer
	var mu sync.Mutex
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		timer = time.AfterFunc(grace, cancel)
	})
	return qctx, func() {
		stop()
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		cancel()
	}
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) logReport(cycle string, report Report) {
	r.logger.WithFields(logrus.Fields{
		"cycle":     cycle,
		"refreshed": len(report.Refreshed),
		"skipped":   len(report.Skipped),
		"added":     len(report.Added),
		"removed":   len(report.Removed),
		"failed":    len(report.Failed),
	}).Info("Refresh cycle complete")
}
