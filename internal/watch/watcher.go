package watch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BatchFunc receives each emitted batch. Calls are serialized in emission order.
type BatchFunc func(ctx context.Context, batch Batch)

// Watcher connects a Source to an Aggregator for one environment root.
type Watcher struct {
	root       string
	source     Source
	classifier *Classifier
	debounce   time.Duration
	logger     *logrus.Entry
}

// NewWatcher creates a Watcher for root.
func NewWatcher(root string, source Source, classifier *Classifier, debounce time.Duration, logger *logrus.Entry) *Watcher {
	return &Watcher{
		root:       root,
		source:     source,
		classifier: classifier,
		debounce:   debounce,
		logger:     logger,
	}
}

// Run watches the root until ctx ends or the source stream fails, calling
// onBatch for every debounced batch. Event intake, debouncing and batch
// delivery run on separate goroutines, so a slow onBatch never stalls intake.
//
// Run returns nil when ctx ends and the source's error when the stream ends on
// its own; callers restart the watch in that case.
func (w *Watcher) Run(ctx context.Context, onBatch BatchFunc) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	agg := NewAggregator(w.debounce, w.logger)
	events := make(chan Event, 256)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		agg.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for batch := range agg.Batches() {
			w.logger.WithField("envs", []string(batch)).Info("Changes detected")
			onBatch(ctx, batch)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case ev := <-events:
				name, ok := w.classifier.Owner(ev.Path)
				if !ok {
					continue
				}
				w.logger.WithField("env", name).WithField("kind", ev.Kind.String()).Trace("Classified event")
				agg.Add(runCtx, name)
			}
		}
	}()

	w.logger.WithField("root", w.root).Info("Watching environment root")
	err := w.source.Watch(runCtx, w.root, events)
	cancel()
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return err
}
