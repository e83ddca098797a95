package collector

import (
	"context"

	"github.com/grovetools/envwatch/internal/registry"
	"github.com/sirupsen/logrus"
)

// SnapshotCollector persists the registry after every cycle that changed it
// and once more at shutdown.
type SnapshotCollector struct {
	path   string
	logger *logrus.Entry
}

// NewSnapshotCollector creates a SnapshotCollector writing to path.
func NewSnapshotCollector(path string, logger *logrus.Entry) *SnapshotCollector {
	return &SnapshotCollector{path: path, logger: logger}
}

// Name returns the collector's name.
func (c *SnapshotCollector) Name() string { return "snapshot" }

// Run saves snapshots until ctx ends.
func (c *SnapshotCollector) Run(ctx context.Context, reg *registry.Registry) error {
	updates := reg.Subscribe()
	defer reg.Unsubscribe(updates)

	c.save(reg)
	for {
		select {
		case <-ctx.Done():
			c.save(reg)
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Report.Changed() {
				c.save(reg)
			}
		}
	}
}

func (c *SnapshotCollector) save(reg *registry.Registry) {
	snap := reg.Snapshot()
	if err := snap.Save(c.path); err != nil {
		c.logger.WithError(err).WithField("path", c.path).Warn("Failed to save snapshot")
		return
	}
	c.logger.WithFields(logrus.Fields{
		"path":         c.path,
		"environments": len(snap.Environments),
	}).Debug("Snapshot saved")
}
