package query

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/grovetools/envwatch/command"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/sirupsen/logrus"
)

// DefaultDu is the disk usage binary.
const DefaultDu = "du"

// DiskUsageQuerier measures directories with one `du -bs -- <paths...>` call.
type DiskUsageQuerier struct {
	runner *command.Runner
	du     string
	logger *logrus.Entry
}

// NewDiskUsageQuerier creates a DiskUsageQuerier. Empty du selects DefaultDu.
func NewDiskUsageQuerier(runner *command.Runner, du string, logger *logrus.Entry) *DiskUsageQuerier {
	if du == "" {
		du = DefaultDu
	}
	return &DiskUsageQuerier{runner: runner, du: du, logger: logger}
}

// Sizes implements SizeQuerier. du exits non-zero when part of a tree is
// unreadable but still prints a total for every argument it could stat, so a
// failed exit with output is accepted and left to the caller's alignment check.
func (q *DiskUsageQuerier) Sizes(ctx context.Context, paths []string) envs.Result[[]int64] {
	if len(paths) == 0 {
		return envs.Ok([]int64{})
	}

	args := append([]string{"-bs", "--"}, paths...)
	out, err := q.runner.Run(ctx, q.du, args...)
	if err != nil {
		kind := kindOf(err)
		if kind != envs.ErrFailed || len(bytes.TrimSpace(out.Stdout)) == 0 {
			return envs.Err[[]int64](kind, "%s", describe(err))
		}
		q.logger.WithError(err).Warn("du reported errors, using partial output")
	}

	sizes, perr := parseDuOutput(out.Stdout)
	if perr != nil {
		return envs.Err[[]int64](envs.ErrMalformed, "%v", perr)
	}
	return envs.Ok(sizes)
}

// parseDuOutput reads the leading byte count of every non-empty line.
func parseDuOutput(stdout []byte) ([]int64, error) {
	var sizes []int64
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, n)
	}
	return sizes, scanner.Err()
}
