package collector

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/internal/watch"
	"github.com/grovetools/envwatch/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func openRegistry(t *testing.T, names ...string) (*registry.Registry, string) {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0755))
	}
	reg, err := registry.Open(context.Background(), registry.Options{
		Root:     root,
		Packages: &testutil.StaticQueries{Version: "1"},
		Sizes:    &testutil.StaticQueries{},
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return reg, root
}

// flakySource fails its first Watch call and then replays feed.
type flakySource struct {
	calls atomic.Int32
	feed  chan watch.Event
}

func (s *flakySource) Watch(ctx context.Context, root string, events chan<- watch.Event) error {
	if s.calls.Add(1) == 1 {
		return errors.New("stream broke")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.feed:
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func runCollector(t *testing.T, c Collector, reg *registry.Registry) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, reg) }()
	return cancel, done
}

func TestWatchCollectorRestartsAndReconciles(t *testing.T) {
	reg, root := openRegistry(t, "alpha")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "beta"), 0755))

	src := &flakySource{feed: make(chan watch.Event)}
	c := NewWatchCollector(src, nil, 20*time.Millisecond, 10*time.Millisecond, testLogger())
	cancel, done := runCollector(t, c, reg)

	// The restart reconciles the registry with the directory listing.
	require.Eventually(t, func() bool {
		_, ok := reg.Get("beta")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	// Batches from the restarted stream reach the registry.
	require.NoError(t, os.WriteFile(filepath.Join(root, "alpha", "new.txt"), []byte("x"), 0644))
	src.feed <- watch.Event{Kind: watch.EventCreate, Path: filepath.Join(root, "alpha", "new.txt")}
	require.Eventually(t, func() bool {
		env, _ := reg.Get("alpha")
		return env.Generation == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRescanCollector(t *testing.T) {
	reg, root := openRegistry(t, "alpha")

	c := NewRescanCollector(20*time.Millisecond, testLogger())
	cancel, done := runCollector(t, c, reg)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "gamma"), 0755))
	require.Eventually(t, func() bool {
		_, ok := reg.Get("gamma")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRescanCollectorDisabled(t *testing.T) {
	reg, _ := openRegistry(t)
	c := NewRescanCollector(0, testLogger())
	cancel, done := runCollector(t, c, reg)
	cancel()
	assert.NoError(t, <-done)
}

func TestSnapshotCollector(t *testing.T) {
	reg, root := openRegistry(t, "alpha")
	path := filepath.Join(t.TempDir(), "snapshot.yml")

	c := NewSnapshotCollector(path, testLogger())
	cancel, done := runCollector(t, c, reg)

	require.Eventually(t, func() bool {
		snap, err := registry.LoadSnapshot(path)
		return err == nil && snap != nil && len(snap.Environments) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "beta"), 0755))
	reg.Refresh(context.Background(), []string{"beta"}, false)

	require.Eventually(t, func() bool {
		snap, err := registry.LoadSnapshot(path)
		return err == nil && snap != nil && len(snap.Environments) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)

	snap, err := registry.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, root, snap.Root)
	assert.Contains(t, snap.Environments, "beta")
}

func TestConfigCollectorAppliesChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "envwatch.yml")
	require.NoError(t, os.WriteFile(file, []byte("version: \"1.0\"\n"), 0644))

	current := config.Default()
	var mu sync.Mutex
	var loads int
	load := func() (*config.Config, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		return config.Load(file)
	}

	reg, _ := openRegistry(t)
	c := NewConfigCollector([]string{file}, current, load, testLogger())
	cancel, done := runCollector(t, c, reg)

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("version: \"1.0\"\nrefresh:\n  workers: 8\n"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return loads > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRestartRequired(t *testing.T) {
	base := config.Default()

	logOnly := config.Default()
	logOnly.Extensions = map[string]interface{}{"logging": map[string]interface{}{"level": "debug"}}
	assert.False(t, restartRequired(base, logOnly))

	workers := config.Default()
	workers.Refresh.Workers = 8
	assert.True(t, restartRequired(base, workers))

	assert.False(t, restartRequired(nil, workers))
}
