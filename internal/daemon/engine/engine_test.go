package engine

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/envwatch/internal/registry"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type countingCollector struct {
	name string
	runs *atomic.Int32
	err  error
}

func (c countingCollector) Name() string { return c.name }

func (c countingCollector) Run(ctx context.Context, reg *registry.Registry) error {
	c.runs.Add(1)
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return nil
}

func TestEngineRunsEveryCollector(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reg := registry.New(registry.Options{Root: t.TempDir(), Logger: logrus.NewEntry(logger)})

	var runs atomic.Int32
	eng := New(reg, logrus.NewEntry(logger))
	eng.Register(countingCollector{name: "a", runs: &runs})
	eng.Register(countingCollector{name: "b", runs: &runs})
	eng.Register(countingCollector{name: "broken", runs: &runs, err: errors.New("boom")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Same(t, reg, eng.Registry())
}
