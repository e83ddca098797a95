package watch

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the window used when none is configured.
const DefaultDebounce = 3 * time.Second

// Batch is a deduplicated, sorted set of environment names to re-examine.
type Batch []string

// Aggregator coalesces environment names into batches. A window is armed by the
// first name of a batch and is not extended by later names, so a sustained
// burst still flushes on schedule.
//
// Names are delivered to Run over a channel; the pending set is owned by the
// Run goroutine alone.
type Aggregator struct {
	window time.Duration
	in     chan string
	out    chan Batch
	logger *logrus.Entry
}

// NewAggregator creates an Aggregator with the given debounce window.
func NewAggregator(window time.Duration, logger *logrus.Entry) *Aggregator {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Aggregator{
		window: window,
		in:     make(chan string, 256),
		out:    make(chan Batch),
		logger: logger,
	}
}

// Add queues name for the current batch. It is safe for concurrent use and
// returns false if ctx ended before the name was accepted.
func (a *Aggregator) Add(ctx context.Context, name string) bool {
	select {
	case a.in <- name:
		return true
	case <-ctx.Done():
		return false
	}
}

// Batches returns the channel batches are emitted on, in window order. It is
// closed when Run returns.
func (a *Aggregator) Batches() <-chan Batch {
	return a.out
}

// Run owns the pending set until ctx ends. Batches that are ready but not yet
// received are queued, so a slow consumer never blocks Add.
func (a *Aggregator) Run(ctx context.Context) {
	defer close(a.out)

	pending := make(map[string]struct{})
	var ready []Batch
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		// Only offer a batch when one is ready.
		var out chan Batch
		var next Batch
		if len(ready) > 0 {
			out = a.out
			next = ready[0]
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if len(pending) > 0 || len(ready) > 0 {
				a.logger.WithField("pending", len(pending)).WithField("queued", len(ready)).
					Debug("Dropping unflushed changes on shutdown")
			}
			return

		case name := <-a.in:
			if _, seen := pending[name]; seen {
				continue
			}
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(a.window)
				fire = timer.C
				a.logger.WithField("env", name).Debug("Debounce window opened")
			}

		case <-fire:
			batch := make(Batch, 0, len(pending))
			for name := range pending {
				batch = append(batch, name)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})
			timer, fire = nil, nil
			ready = append(ready, batch)
			a.logger.WithField("envs", []string(batch)).Debug("Debounce window closed")

		case out <- next:
			ready = ready[1:]
		}
	}
}
