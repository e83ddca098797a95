package registry

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// fakeQueries answers both queries from a version counter so that a reader can
// tell whether the two fields of a snapshot come from the same refresh.
type fakeQueries struct {
	version atomic.Int64
	delay   time.Duration

	mu        sync.Mutex
	pkgCalls  []string
	sizeCalls [][]string
	failPkg   map[string]bool
	block     chan struct{}
	// perPath tracks concurrent package queries per environment.
	perPath map[string]int
	maxPath int

	active    atomic.Int32
	maxActive atomic.Int32
	started   chan string
}

func newFakeQueries() *fakeQueries {
	f := &fakeQueries{
		failPkg: make(map[string]bool),
		perPath: make(map[string]int),
		started: make(chan string, 64),
	}
	f.version.Store(1)
	return f
}

func (f *fakeQueries) enter(paths ...string) {
	n := f.active.Add(1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	for _, p := range paths {
		f.perPath[p]++
		if f.perPath[p] > f.maxPath {
			f.maxPath = f.perPath[p]
		}
	}
	f.mu.Unlock()
}

func (f *fakeQueries) leave(paths ...string) {
	f.mu.Lock()
	for _, p := range paths {
		f.perPath[p]--
	}
	f.mu.Unlock()
	f.active.Add(-1)
}

// wait applies the configured delay or block. It reports false when ctx ended
// first.
func (f *fakeQueries) wait(ctx context.Context) bool {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return false
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (f *fakeQueries) Packages(ctx context.Context, envPath string) envs.Result[envs.Packages] {
	f.enter(envPath)
	defer f.leave(envPath)

	f.mu.Lock()
	f.pkgCalls = append(f.pkgCalls, filepath.Base(envPath))
	fail := f.failPkg[filepath.Base(envPath)]
	f.mu.Unlock()

	select {
	case f.started <- filepath.Base(envPath):
	default:
	}
	if !f.wait(ctx) {
		return envs.Err[envs.Packages](envs.ErrCancelled, "%v", ctx.Err())
	}
	if fail {
		return envs.Err[envs.Packages](envs.ErrFailed, "pip exploded")
	}
	return envs.Ok(envs.Packages{"version": strconv.FormatInt(f.version.Load(), 10)})
}

func (f *fakeQueries) Sizes(ctx context.Context, paths []string) envs.Result[[]int64] {
	f.enter()
	defer f.leave()

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	f.mu.Lock()
	f.sizeCalls = append(f.sizeCalls, names)
	f.mu.Unlock()

	if !f.wait(ctx) {
		return envs.Err[[]int64](envs.ErrCancelled, "%v", ctx.Err())
	}
	sizes := make([]int64, len(paths))
	for i := range sizes {
		sizes[i] = f.version.Load() * 1000
	}
	return envs.Ok(sizes)
}

func (f *fakeQueries) setBlock(ch chan struct{}) {
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
}

func (f *fakeQueries) packageCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pkgCalls...)
}

func (f *fakeQueries) sizeBatches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.sizeCalls...)
}

func (f *fakeQueries) drainStarted() {
	for {
		select {
		case <-f.started:
		default:
			return
		}
	}
}

func (f *fakeQueries) reset() {
	f.mu.Lock()
	f.pkgCalls = nil
	f.sizeCalls = nil
	f.mu.Unlock()
}

// makeDirs creates environment directories, each holding files regular files.
func makeDirs(t *testing.T, root string, files int, names ...string) {
	t.Helper()
	for _, name := range names {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		for i := 0; i < files; i++ {
			addFile(t, root, name, "seed-"+strconv.Itoa(i))
		}
	}
}

func addFile(t *testing.T, root, env, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, env, name), []byte("x"), 0644))
}

func openRegistry(t *testing.T, root string, f *fakeQueries, mutate ...func(*Options)) *Registry {
	t.Helper()
	pm, err := patternmatcher.New([]string{".*"})
	require.NoError(t, err)

	opts := Options{
		Root:          root,
		Exclude:       pm,
		Workers:       4,
		ShutdownGrace: time.Second,
		Packages:      f,
		Sizes:         f,
		Logger:        testLogger(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	r, err := Open(context.Background(), opts)
	require.NoError(t, err)
	return r
}
