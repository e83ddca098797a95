package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/grovetools/envwatch/errors"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

// Output holds the captured streams of a finished command.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes external commands with a per-call timeout.
type Runner struct {
	executor Executor
	timeout  time.Duration
}

// NewRunner creates a Runner backed by a RealExecutor that adds QueryEnv.
func NewRunner(timeout time.Duration) *Runner {
	return NewRunnerWithExecutor(&RealExecutor{Env: QueryEnv}, timeout)
}

// NewRunnerWithExecutor creates a Runner with a custom Executor.
func NewRunnerWithExecutor(exec Executor, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	return &Runner{executor: exec, timeout: timeout}
}

// Timeout returns the per-call timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Run executes name with args and waits for it to finish. Output is returned
// even when the command exits non-zero so callers can inspect partial results.
//
// Errors carry one of the COMMAND_* codes. When ctx itself is cancelled the
// returned error wraps ctx.Err().
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := r.executor.CommandContext(runCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	switch {
	case ctx.Err() != nil:
		return out, errors.Wrap(ctx.Err(), errors.ErrCodeCommandFailed, "command interrupted: "+name).
			WithDetail("command", name)
	case stderrors.Is(runCtx.Err(), context.DeadlineExceeded):
		return out, errors.CommandTimeout(name, r.timeout)
	case stderrors.Is(err, exec.ErrNotFound), stderrors.Is(err, fs.ErrNotExist):
		return out, errors.CommandNotFound(name, err)
	}

	envErr := errors.CommandFailed(name, err)
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		envErr = envErr.WithDetail("stderr", msg)
	}
	return out, envErr
}
