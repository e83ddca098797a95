package registry

import (
	"github.com/grovetools/envwatch/command"
	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/pkg/query"
	"github.com/sirupsen/logrus"
)

// OptionsFromConfig builds registry options for root using the configured
// exclude patterns, worker pool and external query programs.
func OptionsFromConfig(cfg *config.Config, root string, logger *logrus.Entry) (Options, error) {
	exclude, err := cfg.ExcludeMatcher()
	if err != nil {
		return Options{}, err
	}

	runner := command.NewRunner(cfg.Refresh.QueryTimeoutDuration())
	return Options{
		Root:          root,
		Exclude:       exclude,
		Workers:       cfg.Refresh.Workers,
		ShutdownGrace: cfg.Refresh.ShutdownGraceDuration(),
		Packages:      query.NewPipQuerier(runner, cfg.Queries.Python, logger.WithField("query", "pip")),
		Sizes:         query.NewDiskUsageQuerier(runner, cfg.Queries.Du, logger.WithField("query", "du")),
		Logger:        logger,
	}, nil
}

// SnapshotPath returns where the registry snapshot is kept, or "" when
// persistence is disabled.
func SnapshotPath(cfg *config.Config, defaultPath string) string {
	if !cfg.SnapshotEnabled() {
		return ""
	}
	if cfg.Snapshot.Path != "" {
		return cfg.Snapshot.Path
	}
	return defaultPath
}
