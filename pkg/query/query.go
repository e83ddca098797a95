// Package query runs the expensive external queries behind an environment's
// metadata: the installed package inventory and the on-disk size.
//
// Every query converts its outcome into an envs.Result at this boundary; no
// query error escapes as a Go error.
package query

import (
	"context"
	stderrors "errors"

	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/pkg/envs"
)

// PackageQuerier lists the packages installed in one environment.
type PackageQuerier interface {
	Packages(ctx context.Context, envPath string) envs.Result[envs.Packages]
}

// SizeQuerier measures several directories with a single external call. On
// success the returned slice is positionally aligned with paths.
type SizeQuerier interface {
	Sizes(ctx context.Context, paths []string) envs.Result[[]int64]
}

// kindOf maps a command runner error to a result error kind.
func kindOf(err error) envs.ErrorKind {
	switch {
	case stderrors.Is(err, context.Canceled):
		return envs.ErrCancelled
	case errors.Is(err, errors.ErrCodeCommandTimeout):
		return envs.ErrTimeout
	case errors.Is(err, errors.ErrCodeCommandNotFound):
		return envs.ErrNotFound
	default:
		return envs.ErrFailed
	}
}

// describe returns a compact message for err, preferring the command's stderr.
func describe(err error) string {
	var envErr *errors.EnvError
	if stderrors.As(err, &envErr) {
		if msg, ok := envErr.Details["stderr"].(string); ok && msg != "" {
			return msg
		}
		return envErr.Message
	}
	return err.Error()
}
