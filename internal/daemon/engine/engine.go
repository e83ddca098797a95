// Package engine runs the daemon's collectors against one registry.
package engine

import (
	"context"
	"sync"

	"github.com/grovetools/envwatch/internal/daemon/collector"
	"github.com/grovetools/envwatch/internal/registry"
	"github.com/sirupsen/logrus"
)

// Engine manages and runs all collectors.
type Engine struct {
	registry   *registry.Registry
	collectors []collector.Collector
	logger     *logrus.Entry
}

// New creates a new Engine over reg.
func New(reg *registry.Registry, logger *logrus.Entry) *Engine {
	return &Engine{
		registry: reg,
		logger:   logger,
	}
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Start runs all collectors and blocks until every one has returned, which
// happens once ctx is canceled.
func (e *Engine) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range e.collectors {
		wg.Add(1)
		go func(col collector.Collector) {
			defer wg.Done()
			log := e.logger.WithField("collector", col.Name())
			log.Info("Starting collector")
			if err := col.Run(ctx, e.registry); err != nil {
				log.WithError(err).Error("Collector failed")
				return
			}
			log.Debug("Collector stopped")
		}(c)
	}
	wg.Wait()
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}
