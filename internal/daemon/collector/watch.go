package collector

import (
	"context"
	"time"

	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/internal/watch"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// WatchCollector feeds filesystem change batches into the registry. When the
// watch stream ends on its own it waits for the backoff, reconciles the
// registry with a full refresh and starts a new watch.
type WatchCollector struct {
	source   watch.Source
	exclude  *patternmatcher.PatternMatcher
	debounce time.Duration
	backoff  time.Duration
	logger   *logrus.Entry
}

// NewWatchCollector creates a WatchCollector. A zero debounce or backoff uses
// the watch defaults.
func NewWatchCollector(source watch.Source, exclude *patternmatcher.PatternMatcher, debounce, backoff time.Duration, logger *logrus.Entry) *WatchCollector {
	if debounce <= 0 {
		debounce = watch.DefaultDebounce
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &WatchCollector{
		source:   source,
		exclude:  exclude,
		debounce: debounce,
		backoff:  backoff,
		logger:   logger,
	}
}

// Name returns the collector's name.
func (c *WatchCollector) Name() string { return "watch" }

// Run watches the registry's root until ctx ends.
func (c *WatchCollector) Run(ctx context.Context, reg *registry.Registry) error {
	root := reg.Root()
	classifier := watch.NewClassifier(root, c.exclude)

	for restarts := 0; ; restarts++ {
		if restarts > 0 {
			if _, err := reg.RefreshAll(ctx, false); err != nil {
				c.logger.WithError(err).Warn("Reconciling registry before restarting watch failed")
			}
		}

		w := watch.NewWatcher(root, c.source, classifier, c.debounce, c.logger)
		err := w.Run(ctx, func(ctx context.Context, batch watch.Batch) {
			reg.OnBatch(ctx, batch)
		})
		if ctx.Err() != nil {
			return nil
		}

		c.logger.WithError(err).WithFields(logrus.Fields{
			"root":     root,
			"restarts": restarts,
			"backoff":  c.backoff,
		}).Warn("Watch stream ended, restarting")
		if !sleep(ctx, c.backoff) {
			return nil
		}
	}
}
