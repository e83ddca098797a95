package errors

import (
	"fmt"
	"os/exec"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *EnvError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *EnvError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// RootNotFound creates an error for a missing or unreadable environment root
func RootNotFound(root string, cause error) *EnvError {
	return Wrap(cause, ErrCodeRootNotFound, fmt.Sprintf("environment root not found: %s", root)).
		WithDetail("root", root)
}

// EnvNotFound creates an error for an environment that is not registered
func EnvNotFound(name string) *EnvError {
	return New(ErrCodeEnvNotFound, fmt.Sprintf("environment '%s' not found", name)).
		WithDetail("env", name)
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *EnvError {
	envErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		envErr = envErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return envErr
}

// CommandNotFound creates an error for an executable that does not exist
func CommandNotFound(cmd string, err error) *EnvError {
	return Wrap(err, ErrCodeCommandNotFound, fmt.Sprintf("command not found: %s", cmd)).
		WithDetail("command", cmd)
}

// CommandTimeout creates a command timeout error
func CommandTimeout(cmd string, timeout time.Duration) *EnvError {
	return New(ErrCodeCommandTimeout,
		fmt.Sprintf("command '%s' did not finish within %s", cmd, timeout)).
		WithDetail("command", cmd).
		WithDetail("timeout", timeout.String())
}

// DaemonNotRunning creates an error for commands that require the daemon
func DaemonNotRunning(socket string) *EnvError {
	return New(ErrCodeDaemonNotRunning, "envwatch daemon is not running").
		WithDetail("socket", socket)
}

// SnapshotInvalid creates an error for an unreadable registry snapshot
func SnapshotInvalid(path string, cause error) *EnvError {
	return Wrap(cause, ErrCodeSnapshotInvalid, fmt.Sprintf("invalid snapshot: %s", path)).
		WithDetail("path", path)
}
