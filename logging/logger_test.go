package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/envwatch/config"
	"github.com/sirupsen/logrus"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("ENVWATCH_HOME", home)
	t.Setenv("ENVWATCH_LOG_LEVEL", "")
	t.Cleanup(Reset)
	return home
}

func TestNewLogger(t *testing.T) {
	isolate(t)
	Configure(Config{File: FileSinkConfig{Disabled: true}})

	logger := NewLogger("test-component")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}
	if logger.Data["component"] != "test-component" {
		t.Errorf("Expected component to be 'test-component', got %v", logger.Data["component"])
	}
	if NewLogger("test-component") != logger {
		t.Error("Expected the same logger for the same component")
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.Info("Test message")

	output := buf.String()
	for _, want := range []string{"[INFO]", "test", "Test message"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
				Data: logrus.Fields{
					"component": "registry",
					"env":       "alpha",
				},
			},
			want: []string{"2024-05-01 12:00:00", "[INFO]", "registry", "test message", "env=alpha"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "slow query",
				Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
				Data:    logrus.Fields{"component": "registry"},
			},
			want:    []string{"[WARN]", "slow query"},
			notWant: []string{"2024-05-01", "registry"},
		},
		{
			name:   "fields are sorted",
			config: FormatConfig{DisableTimestamp: true},
			entry: &logrus.Entry{
				Level:   logrus.DebugLevel,
				Message: "cycle",
				Data:    logrus.Fields{"zeta": 1, "alpha": 2},
			},
			want: []string{"[DEBUG] cycle alpha=2 zeta=1"},
		},
		{
			name:   "error last and spaced values quoted",
			config: FormatConfig{DisableTimestamp: true},
			entry: &logrus.Entry{
				Level:   logrus.ErrorLevel,
				Message: "query failed",
				Data:    logrus.Fields{"error": "exit status 1", "env": "py311", "zeta": ""},
			},
			want: []string{`[ERROR] query failed env=py311 zeta="" error="exit status 1"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &TextFormatter{Config: tt.config}
			out, err := f.Format(tt.entry)
			if err != nil {
				t.Fatalf("Format returned error: %v", err)
			}
			got := string(out)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Expected %q in %q", w, got)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(got, nw) {
					t.Errorf("Did not expect %q in %q", nw, got)
				}
			}
		})
	}
}

func TestEnvironmentLevelOverride(t *testing.T) {
	isolate(t)
	t.Setenv("ENVWATCH_LOG_LEVEL", "debug")
	Configure(Config{Level: "error", File: FileSinkConfig{Disabled: true}})

	logger := NewLogger("env-level")
	if logger.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level from environment, got %v", logger.Logger.GetLevel())
	}
}

func TestSetLevelAppliesToExistingLoggers(t *testing.T) {
	isolate(t)
	Configure(Config{Level: "info", File: FileSinkConfig{Disabled: true}})

	logger := NewLogger("existing")
	SetLevel(logrus.DebugLevel)
	if logger.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected existing logger to switch to debug, got %v", logger.Logger.GetLevel())
	}
	if NewLogger("later").Logger.GetLevel() != logrus.DebugLevel {
		t.Error("Expected new loggers to use the override")
	}
}

func TestFileSink(t *testing.T) {
	home := isolate(t)
	Configure(Config{Format: FormatConfig{StructuredToStderr: "never"}})

	NewLogger("daemon").Info("hello file")

	path := LogFilePath(time.Now())
	if !strings.HasPrefix(path, home) {
		t.Fatalf("Expected log file under %s, got %s", home, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("Expected log line in file, got %q", string(data))
	}
}

func TestFileSinkReopensRemovedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	w := newReopeningWriter(path)
	defer w.Close()

	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to be recreated: %v", err)
	}
	if string(data) != "second\n" {
		t.Errorf("Expected only the second line, got %q", string(data))
	}
}

func TestConfigFromExtension(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(`
version: "1.0"
logging:
  level: debug
  report_caller: true
  file:
    path: /tmp/envwatch.log
  format:
    preset: json
`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	logCfg := ConfigFrom(cfg)
	if logCfg.Level != "debug" || !logCfg.ReportCaller {
		t.Errorf("Unexpected logging config: %+v", logCfg)
	}
	if logCfg.Format.Preset != "json" {
		t.Errorf("Expected json preset, got %q", logCfg.Format.Preset)
	}
	if logCfg.ResolveFilePath() != "/tmp/envwatch.log" {
		t.Errorf("Expected configured path, got %q", logCfg.ResolveFilePath())
	}
}

func TestShouldLogToStderr(t *testing.T) {
	if !shouldLogToStderr("always", logrus.InfoLevel) {
		t.Error("always should log to stderr")
	}
	if shouldLogToStderr("never", logrus.DebugLevel) {
		t.Error("never should not log to stderr")
	}
	if !shouldLogToStderr("auto", logrus.DebugLevel) {
		t.Error("auto should log to stderr when debugging")
	}
}
