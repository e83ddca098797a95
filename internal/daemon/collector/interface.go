// Package collector provides the background workers that keep the daemon's
// registry current.
package collector

import (
	"context"
	"time"

	"github.com/grovetools/envwatch/internal/registry"
)

// Collector is a background worker driving one source of registry refreshes.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run blocks until ctx is canceled. Refresh results are published by the
	// registry itself, so collectors only trigger work.
	Run(ctx context.Context, reg *registry.Registry) error
}

// sleep waits for d or until ctx ends, reporting whether the full duration passed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
