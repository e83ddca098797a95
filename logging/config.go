package logging

//go:generate sh -c "cd .. && go run ./tools/schema-generator/"

// Config defines the 'logging' section of envwatch.yml.
type Config struct {
	// Level is the minimum log level to output (e.g., "debug", "info", "warn", "error").
	// Can be overridden by the ENVWATCH_LOG_LEVEL environment variable.
	Level string `yaml:"level,omitempty" jsonschema:"description=Minimum log level (debug, info, warn, error),enum=trace,enum=debug,enum=info,enum=warn,enum=error"`

	// ReportCaller, if true, includes the file, line, and function name in the log output.
	// Can be enabled with the ENVWATCH_LOG_CALLER=true environment variable.
	ReportCaller bool `yaml:"report_caller,omitempty" jsonschema:"description=Include the calling file and function in log lines"`

	// File configures logging to a file.
	File FileSinkConfig `yaml:"file,omitempty" jsonschema:"description=File sink"`

	// Format configures the appearance of the log output.
	Format FormatConfig `yaml:"format,omitempty" jsonschema:"description=Output format"`
}

// FileSinkConfig configures the file logging sink.
type FileSinkConfig struct {
	// Disabled turns the file sink off. It is on by default so that
	// 'envwatch logs' has something to follow.
	Disabled bool `yaml:"disabled,omitempty" jsonschema:"description=Do not write a log file"`
	// Path is the full path to the log file. Defaults to <state dir>/logs/envwatch-<date>.log.
	Path string `yaml:"path,omitempty" jsonschema:"description=Log file path"`
}

// FormatConfig controls the log output format.
type FormatConfig struct {
	// Preset can be "default" (rich text), "simple" (minimal text), or "json".
	Preset string `yaml:"preset,omitempty" jsonschema:"enum=default,enum=simple,enum=json"`
	// DisableTimestamp disables the timestamp from the "default" and "simple" formats.
	DisableTimestamp bool `yaml:"disable_timestamp,omitempty"`
	// DisableComponent disables the component name from the "default" and "simple" formats.
	DisableComponent bool `yaml:"disable_component,omitempty"`
	// StructuredToStderr controls when structured logs are sent to stderr.
	// Can be "auto" (default), "always", or "never".
	StructuredToStderr string `yaml:"structured_to_stderr,omitempty" jsonschema:"enum=auto,enum=always,enum=never"`
}
