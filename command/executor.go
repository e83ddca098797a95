package command

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// QueryEnv is added to the environment of every external query. It stops pip
// from checking for a newer version of itself on each run.
var QueryEnv = []string{"PIP_DISABLE_PIP_VERSION_CHECK=1"}

// waitDelay bounds how long Run waits for output pipes after the process is
// killed, since grandchildren may keep them open.
const waitDelay = 2 * time.Second

// Executor creates the exec.Cmd for one external command. Tests substitute an
// Executor to redirect commands to fakes.
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// CommandContext implements Executor.
func (f ExecutorFunc) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return f(ctx, name, args...)
}

// RealExecutor runs commands with the process environment plus Env.
type RealExecutor struct {
	Env []string
}

// CommandContext implements Executor.
func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}
