package logging

import (
	"context"
	"fmt"
	"regexp"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// ansiRegex matches ANSI escape sequences for stripping
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// Icons used in user-facing output.
const (
	IconSuccess = "✓"
	IconWarning = "⚠"
	IconError   = "✗"
	IconInfo    = "•"
)

// PrettyStyles contains lipgloss styles for user-facing output.
type PrettyStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultPrettyStyles returns the default styling for pretty output.
func DefaultPrettyStyles() PrettyStyles {
	return PrettyStyles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// UnifiedLogger writes each message twice: once styled for the person at the
// terminal and once as a structured log line.
type UnifiedLogger struct {
	component  string
	structured *logrus.Entry
	styles     PrettyStyles
}

// NewUnifiedLogger creates a unified logger for a component.
func NewUnifiedLogger(component string) *UnifiedLogger {
	return &UnifiedLogger{
		component:  component,
		structured: NewLogger(component),
		styles:     DefaultPrettyStyles(),
	}
}

// Info returns a LogEntry at INFO level.
func (u *UnifiedLogger) Info(msg string) *LogEntry {
	return u.entry(msg, logrus.InfoLevel, IconInfo, "")
}

// Warn returns a LogEntry at WARN level.
func (u *UnifiedLogger) Warn(msg string) *LogEntry {
	return u.entry(msg, logrus.WarnLevel, IconWarning, "")
}

// Error returns a LogEntry at ERROR level.
func (u *UnifiedLogger) Error(msg string) *LogEntry {
	return u.entry(msg, logrus.ErrorLevel, IconError, "")
}

// Success returns a LogEntry logged at INFO level with status=success.
func (u *UnifiedLogger) Success(msg string) *LogEntry {
	return u.entry(msg, logrus.InfoLevel, IconSuccess, "success")
}

func (u *UnifiedLogger) entry(msg string, level logrus.Level, icon, status string) *LogEntry {
	fields := logrus.Fields{}
	if status != "" {
		fields["status"] = status
	}
	return &LogEntry{logger: u, msg: msg, level: level, icon: icon, fields: fields}
}

// WithStructured returns the underlying logrus entry.
func (u *UnifiedLogger) WithStructured() *logrus.Entry {
	return u.structured
}

// LogEntry accumulates options before writing to both outputs.
type LogEntry struct {
	logger     *UnifiedLogger
	msg        string
	level      logrus.Level
	icon       string
	fields     logrus.Fields
	structOnly bool
}

// Field adds a structured field.
func (e *LogEntry) Field(key string, value interface{}) *LogEntry {
	e.fields[key] = value
	return e
}

// Err attaches an error as the "error" field.
func (e *LogEntry) Err(err error) *LogEntry {
	if err != nil {
		e.fields["error"] = err.Error()
	}
	return e
}

// StructuredOnly skips the pretty output.
func (e *LogEntry) StructuredOnly() *LogEntry {
	e.structOnly = true
	return e
}

// Pretty renders the user-facing line.
func (e *LogEntry) Pretty() string {
	styles := e.logger.styles
	line := e.icon + " " + e.msg
	switch {
	case e.level == logrus.ErrorLevel:
		return styles.Error.Render(line)
	case e.level == logrus.WarnLevel:
		return styles.Warning.Render(line)
	case e.fields["status"] == "success":
		return styles.Success.Render(line)
	default:
		return styles.Info.Render(line)
	}
}

// Log writes the entry. Pretty output goes to the writer carried by ctx.
func (e *LogEntry) Log(ctx context.Context) {
	pretty := e.Pretty()
	if !e.structOnly {
		fmt.Fprintln(GetWriter(ctx), pretty)
	}
	e.fields["pretty_text"] = ansiRegex.ReplaceAllString(pretty, "")
	e.logger.structured.WithFields(e.fields).Log(e.level, e.msg)
}
