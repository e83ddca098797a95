package watch

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// chanSource replays events from a channel and fails when fail is closed.
type chanSource struct {
	feed chan Event
	fail chan error
}

func newChanSource() *chanSource {
	return &chanSource{feed: make(chan Event), fail: make(chan error, 1)}
}

func (s *chanSource) Watch(ctx context.Context, root string, events chan<- Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.fail:
			return err
		case ev := <-s.feed:
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

type batchRecorder struct {
	mu      sync.Mutex
	batches []Batch
}

func (r *batchRecorder) record(_ context.Context, b Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func (r *batchRecorder) snapshot() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Batch(nil), r.batches...)
}

func TestWatcherBatchesClassifiedEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newChanSource()
	w := NewWatcher("/envs", src, NewClassifier("/envs", nil), 100*time.Millisecond, testLogger())
	rec := &batchRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, rec.record) }()

	src.feed <- Event{Kind: EventCreate, Path: "/envs/alpha/lib/a.py"}
	src.feed <- Event{Kind: EventCreate, Path: "/envs/alpha/lib/b.py"}
	src.feed <- Event{Kind: EventDelete, Path: "/envs/beta/old.txt"}
	src.feed <- Event{Kind: EventCreate, Path: "/envs"}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []Batch{{"alpha", "beta"}}, rec.snapshot())

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcherReturnsStreamError(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newChanSource()
	w := NewWatcher("/envs", src, NewClassifier("/envs", nil), time.Second, testLogger())

	boom := stderrors.New("inotify gone")
	src.fail <- boom

	err := w.Run(context.Background(), func(context.Context, Batch) {})
	assert.ErrorIs(t, err, boom)
}

func TestWatcherSlowBatchHandlerDoesNotStallIntake(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newChanSource()
	w := NewWatcher("/envs", src, NewClassifier("/envs", nil), 30*time.Millisecond, testLogger())

	release := make(chan struct{})
	rec := &batchRecorder{}
	handler := func(ctx context.Context, b Batch) {
		rec.record(ctx, b)
		<-release
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, handler) }()

	src.feed <- Event{Kind: EventCreate, Path: "/envs/alpha/x"}
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	// The handler is blocked; intake must keep accepting events.
	for i := 0; i < 50; i++ {
		select {
		case src.feed <- Event{Kind: EventCreate, Path: "/envs/beta/x"}:
		case <-time.After(time.Second):
			t.Fatal("event intake stalled behind a slow batch handler")
		}
	}

	close(release)
	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)
	for _, b := range rec.snapshot()[1:] {
		assert.Equal(t, Batch{"beta"}, b)
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestFSNotifySourceEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alpha", "lib"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "beta"), 0755))

	w := NewWatcher(root, NewFSNotifySource(testLogger()), NewClassifier(root, nil), 100*time.Millisecond, testLogger())
	rec := &batchRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, rec.record) }()

	// Give the watcher time to register its watches.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "alpha", "lib", "new.py"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alpha", "lib", "pkg"), 0755))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "alpha", "lib", "pkg", "mod.py"), []byte("x"), 0644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, 3*time.Second, 20*time.Millisecond)
	for _, b := range rec.snapshot() {
		assert.Equal(t, Batch{"alpha"}, b)
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestFSNotifySourceRootRemoved(t *testing.T) {
	defer goleak.VerifyNone(t)

	parent := t.TempDir()
	root := filepath.Join(parent, "envs")
	require.NoError(t, os.MkdirAll(root, 0755))

	src := NewFSNotifySource(testLogger())
	events := make(chan Event, 16)
	done := make(chan error, 1)
	go func() { done <- src.Watch(context.Background(), root, events) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.RemoveAll(root))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRootRemoved)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not end after root removal")
	}
}
