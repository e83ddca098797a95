package watch

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// startAggregator runs an Aggregator and returns a stop function that cancels
// it and waits for Run to return.
func startAggregator(t *testing.T, window time.Duration) (*Aggregator, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	agg := NewAggregator(window, testLogger())
	done := make(chan struct{})
	go func() {
		defer close(done)
		agg.Run(ctx)
	}()
	var once sync.Once
	return agg, func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func receive(t *testing.T, agg *Aggregator, timeout time.Duration) Batch {
	t.Helper()
	select {
	case b, ok := <-agg.Batches():
		require.True(t, ok, "batch channel closed")
		return b
	case <-time.After(timeout):
		t.Fatalf("no batch within %s", timeout)
		return nil
	}
}

func assertNoBatch(t *testing.T, agg *Aggregator, wait time.Duration) {
	t.Helper()
	select {
	case b := <-agg.Batches():
		t.Fatalf("unexpected batch %v", b)
	case <-time.After(wait):
	}
}

func TestAggregatorDeduplicates(t *testing.T) {
	defer goleak.VerifyNone(t)
	agg, stop := startAggregator(t, 100*time.Millisecond)
	defer stop()
	ctx := context.Background()

	agg.Add(ctx, "alpha")
	agg.Add(ctx, "alpha")
	agg.Add(ctx, "beta")
	agg.Add(ctx, "alpha")

	assert.Equal(t, Batch{"alpha", "beta"}, receive(t, agg, time.Second))
	assertNoBatch(t, agg, 250*time.Millisecond)
}

func TestAggregatorWindowFromFirstEvent(t *testing.T) {
	defer goleak.VerifyNone(t)
	window := 300 * time.Millisecond
	agg, stop := startAggregator(t, window)
	defer stop()
	ctx := context.Background()

	start := time.Now()
	agg.Add(ctx, "alpha")
	time.Sleep(50 * time.Millisecond)
	agg.Add(ctx, "beta")
	time.Sleep(50 * time.Millisecond)
	agg.Add(ctx, "gamma")

	batch := receive(t, agg, 2*time.Second)
	elapsed := time.Since(start)
	assert.Equal(t, Batch{"alpha", "beta", "gamma"}, batch)
	assert.GreaterOrEqual(t, elapsed, window)
	// Later events must not push the flush back by their own window.
	assert.Less(t, elapsed, window+250*time.Millisecond)

	// A later event opens a new window and a new batch.
	agg.Add(ctx, "alpha")
	assert.Equal(t, Batch{"alpha"}, receive(t, agg, 2*time.Second))
}

func TestAggregatorSustainedBurstStillFlushes(t *testing.T) {
	defer goleak.VerifyNone(t)
	agg, stop := startAggregator(t, 100*time.Millisecond)
	defer stop()

	ctx, cancelBurst := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				agg.Add(ctx, "busy")
			}
		}
	}()

	assert.Equal(t, Batch{"busy"}, receive(t, agg, time.Second))
	cancelBurst()
	wg.Wait()
}

func TestAggregatorConcurrentAdds(t *testing.T) {
	defer goleak.VerifyNone(t)
	agg, stop := startAggregator(t, 200*time.Millisecond)
	defer stop()
	ctx := context.Background()

	names := []string{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, n := range names {
				agg.Add(ctx, n)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, Batch(names), receive(t, agg, 2*time.Second))
}

func TestAggregatorSlowConsumerDoesNotBlockAdd(t *testing.T) {
	defer goleak.VerifyNone(t)
	agg, stop := startAggregator(t, 30*time.Millisecond)
	defer stop()
	ctx := context.Background()

	// Nobody reads batches while several windows elapse.
	for _, n := range []string{"one", "two", "three"} {
		done := make(chan struct{})
		go func(n string) {
			agg.Add(ctx, n)
			close(done)
		}(n)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Add blocked behind an unread batch")
		}
		time.Sleep(80 * time.Millisecond)
	}

	assert.Equal(t, Batch{"one"}, receive(t, agg, time.Second))
	assert.Equal(t, Batch{"two"}, receive(t, agg, time.Second))
	assert.Equal(t, Batch{"three"}, receive(t, agg, time.Second))
}

func TestAggregatorClosesOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	agg, stop := startAggregator(t, time.Hour)
	agg.Add(context.Background(), "alpha")
	stop()

	select {
	case _, ok := <-agg.Batches():
		assert.False(t, ok, "pending changes must not be emitted after cancel")
	case <-time.After(time.Second):
		t.Fatal("batch channel not closed")
	}
}
