package collector

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/logging"
	"github.com/sirupsen/logrus"
)

// LoadFunc reloads the daemon configuration.
type LoadFunc func() (*config.Config, error)

// ConfigCollector watches the configuration files the daemon was started
// with. Logging settings are applied on change; everything else is reported
// as needing a daemon restart.
type ConfigCollector struct {
	files    []string
	load     LoadFunc
	current  *config.Config
	debounce time.Duration
	logger   *logrus.Entry

	lastChange time.Time
}

// NewConfigCollector creates a ConfigCollector for files, the configuration
// files currently in effect. current is the configuration loaded from them.
func NewConfigCollector(files []string, current *config.Config, load LoadFunc, logger *logrus.Entry) *ConfigCollector {
	return &ConfigCollector{
		files:    files,
		load:     load,
		current:  current,
		debounce: 100 * time.Millisecond,
		logger:   logger,
	}
}

// Name returns the collector's name.
func (c *ConfigCollector) Name() string { return "config" }

// Run watches the configuration files until ctx ends.
func (c *ConfigCollector) Run(ctx context.Context, _ *registry.Registry) error {
	if len(c.files) == 0 {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directories. fsnotify
	// does not follow symlinks, so symlinked files also watch their target.
	targets := make(map[string]string)
	dirs := make(map[string]bool)
	for _, f := range c.files {
		targets[filepath.Clean(f)] = f
		dirs[filepath.Dir(f)] = true
		if info, err := os.Lstat(f); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if target, err := filepath.EvalSymlinks(f); err == nil {
				targets[target] = f
				dirs[filepath.Dir(target)] = true
			}
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			c.logger.WithError(err).WithField("dir", dir).Warn("Failed to watch config directory")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			file, tracked := targets[filepath.Clean(event.Name)]
			if !tracked || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			c.handleChange(file)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.WithError(err).Warn("Config watcher error")
		}
	}
}

func (c *ConfigCollector) handleChange(file string) {
	if elapsed := time.Since(c.lastChange); elapsed < c.debounce {
		return
	}
	c.lastChange = time.Now()

	log := c.logger.WithField("file", file)
	next, err := c.load()
	if err != nil {
		log.WithError(err).Warn("Ignoring invalid configuration change")
		return
	}
	log.Info("Configuration changed")

	logCfg := logging.ConfigFrom(next)
	if logCfg.Level != "" {
		if level, err := logrus.ParseLevel(logCfg.Level); err == nil {
			logging.SetLevel(level)
			log.WithField("level", level.String()).Info("Applied log level")
		}
	}

	if restartRequired(c.current, next) {
		log.Warn("Configuration changes outside 'logging' take effect after the daemon restarts")
	}
	c.current = next
}

// restartRequired reports whether anything other than extensions changed.
func restartRequired(prev, next *config.Config) bool {
	if prev == nil || next == nil {
		return false
	}
	a, b := *prev, *next
	a.Extensions, b.Extensions = nil, nil
	return !reflect.DeepEqual(a, b)
}
