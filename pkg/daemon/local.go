package daemon

import (
	"context"
	"sync"

	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/sirupsen/logrus"
)

// LocalClient implements Client with an in-process registry. It is used when
// the daemon is not running. The registry is opened on first use, seeded from
// the snapshot when one is configured, and the snapshot is rewritten on Close.
type LocalClient struct {
	cfg          *config.Config
	root         string
	snapshotPath string
	logger       *logrus.Entry

	mu  sync.Mutex
	reg *registry.Registry
	// opts overrides the query backends; used by tests.
	opts func(*registry.Options)
}

// NewLocalClient creates a LocalClient for root. snapshotPath may be empty to
// disable persistence.
func NewLocalClient(cfg *config.Config, root, snapshotPath string, logger *logrus.Entry) *LocalClient {
	return &LocalClient{
		cfg:          cfg,
		root:         root,
		snapshotPath: snapshotPath,
		logger:       logger,
	}
}

func (c *LocalClient) open(ctx context.Context) (*registry.Registry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg != nil {
		return c.reg, nil
	}

	opts, err := registry.OptionsFromConfig(c.cfg, c.root, c.logger)
	if err != nil {
		return nil, err
	}
	if c.snapshotPath != "" {
		hint, err := registry.LoadSnapshot(c.snapshotPath)
		if err != nil {
			c.logger.WithError(err).Warn("Ignoring unreadable snapshot")
		}
		opts.Hint = hint
	}
	if c.opts != nil {
		c.opts(&opts)
	}

	reg, err := registry.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.reg = reg
	return reg, nil
}

// List implements Client.
func (c *LocalClient) List(ctx context.Context) ([]envs.Environment, error) {
	reg, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	return reg.List(), nil
}

// Get implements Client.
func (c *LocalClient) Get(ctx context.Context, name string) (envs.Environment, error) {
	reg, err := c.open(ctx)
	if err != nil {
		return envs.Environment{}, err
	}
	env, ok := reg.Get(name)
	if !ok {
		return envs.Environment{}, errors.EnvNotFound(name)
	}
	return env, nil
}

// Refresh implements Client. Opening the registry already refreshes every
// environment, so the first call only re-checks what changed since.
func (c *LocalClient) Refresh(ctx context.Context, names []string, force bool) (*RefreshResult, error) {
	reg, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		report := reg.Refresh(ctx, names, force)
		return &RefreshResult{Refreshed: len(report.Refreshed), Report: &report}, nil
	}
	n, err := reg.RefreshAll(ctx, force)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{Refreshed: n}, nil
}

// Stream returns an error since streaming is only available via the daemon.
func (c *LocalClient) Stream(ctx context.Context) (<-chan StateUpdate, error) {
	return nil, errors.New(errors.ErrCodeDaemonNotRunning,
		"streaming not available in local mode; start the daemon with 'envwatch daemon start'")
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close saves the snapshot if the registry was opened.
func (c *LocalClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg == nil || c.snapshotPath == "" {
		return nil
	}
	return c.reg.Snapshot().Save(c.snapshotPath)
}

var _ Client = (*LocalClient)(nil)
