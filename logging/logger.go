package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/pkg/paths"
	"github.com/mattn/go-isatty"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	// active is the configuration applied to new loggers; nil means it is
	// loaded from envwatch.yml on first use.
	active    *Config
	levelOver *logrus.Level
	files     = make(map[string]*reopeningWriter)
)

// Configure sets the configuration used by loggers created afterwards and
// drops the cached ones.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	active = &cfg
	loggers = make(map[string]*logrus.Entry)
}

// ConfigFrom decodes the 'logging' extension of an envwatch configuration.
func ConfigFrom(cfg *config.Config) Config {
	var logCfg Config
	if cfg == nil {
		return logCfg
	}
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		logrus.Warnf("Failed to parse 'logging' config: %v", err)
	}
	return logCfg
}

// SetLevel overrides the level of every existing and future logger.
func SetLevel(level logrus.Level) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	levelOver = &level
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
}

// Reset drops cached loggers and closes log files.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for path, w := range files {
		w.Close()
		delete(files, path)
	}
	loggers = make(map[string]*logrus.Entry)
	active = nil
	levelOver = nil
}

// LogFilePath returns the default log file for the given day.
func LogFilePath(day time.Time) string {
	return filepath.Join(paths.LogDir(), fmt.Sprintf("envwatch-%s.log", day.Format("2006-01-02")))
}

// ResolveFilePath returns the file the sink writes to, or "" when disabled.
func (c Config) ResolveFilePath() string {
	if c.File.Disabled {
		return ""
	}
	if c.File.Path != "" {
		if expanded, err := homedir.Expand(c.File.Path); err == nil {
			return expanded
		}
		return c.File.Path
	}
	return LogFilePath(time.Now())
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	if active == nil {
		var logCfg Config
		if cfg, err := config.LoadDefault(); err == nil {
			logCfg = ConfigFrom(cfg)
		}
		active = &logCfg
	}
	logCfg := *active

	logger := logrus.New()

	// Configure Level
	levelStr := "info"
	if env := os.Getenv("ENVWATCH_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	if levelOver != nil {
		level = *levelOver
	}
	logger.SetLevel(level)

	if os.Getenv("ENVWATCH_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer

	if path := logCfg.ResolveFilePath(); path != "" {
		w, ok := files[path]
		if !ok {
			w = newReopeningWriter(path)
			files[path] = w
		}
		writers = append(writers, w)
	}

	if shouldLogToStderr(logCfg.Format.StructuredToStderr, level) {
		writers = append(writers, GetGlobalOutput())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// shouldLogToStderr resolves the structured_to_stderr mode. In "auto" mode
// structured logs reach stderr when debugging or when stderr is not a terminal.
func shouldLogToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	isDebug := level >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return isDebug || !isInteractive
}
