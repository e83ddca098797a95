package collector

import (
	"context"
	"time"

	"github.com/grovetools/envwatch/internal/registry"
	"github.com/sirupsen/logrus"
)

// RescanCollector periodically runs a full non-forced refresh. It repairs
// changes the watch missed, such as those dropped by a queue overflow.
type RescanCollector struct {
	interval time.Duration
	logger   *logrus.Entry
}

// NewRescanCollector creates a RescanCollector. An interval of 0 disables it.
func NewRescanCollector(interval time.Duration, logger *logrus.Entry) *RescanCollector {
	return &RescanCollector{interval: interval, logger: logger}
}

// Name returns the collector's name.
func (c *RescanCollector) Name() string { return "rescan" }

// Run starts the rescan loop.
func (c *RescanCollector) Run(ctx context.Context, reg *registry.Registry) error {
	if c.interval <= 0 {
		c.logger.Debug("Periodic rescan disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			n, err := reg.RefreshAll(ctx, false)
			if err != nil {
				c.logger.WithError(err).Warn("Periodic rescan failed")
				continue
			}
			c.logger.WithFields(logrus.Fields{
				"refreshed": n,
				"duration":  time.Since(start),
			}).Debug("Periodic rescan finished")
		}
	}
}
