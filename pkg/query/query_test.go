package query

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/envwatch/command"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/grovetools/envwatch/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestPipQuerier(t *testing.T) {
	testutil.RequireShell(t)
	runner := command.NewRunner(5 * time.Second)
	q := NewPipQuerier(runner, "", testLogger())

	t.Run("lists packages", func(t *testing.T) {
		root := t.TempDir()
		env := testutil.MakeEnv(t, root, "pyman",
			`[{"name": "numpy", "version": "2.2.2"}, {"name": "pip", "version": "24.2"}]`)

		res := q.Packages(context.Background(), env)
		packages, ok := res.Get()
		require.True(t, ok, "unexpected error: %v", res.Err)
		assert.Equal(t, envs.Packages{"numpy": "2.2.2", "pip": "24.2"}, packages)
	})

	t.Run("missing interpreter", func(t *testing.T) {
		res := q.Packages(context.Background(), t.TempDir())
		require.True(t, res.Failed())
		assert.Equal(t, envs.ErrNotFound, res.Err.Kind)
	})

	t.Run("interpreter fails", func(t *testing.T) {
		env := filepath.Join(t.TempDir(), "broken")
		testutil.WriteScript(t, filepath.Join(env, "bin", "python"), "echo 'No module named pip' >&2; exit 1")

		res := q.Packages(context.Background(), env)
		require.True(t, res.Failed())
		assert.Equal(t, envs.ErrFailed, res.Err.Kind)
		assert.Contains(t, res.Err.Message, "No module named pip")
	})

	t.Run("malformed output", func(t *testing.T) {
		env := testutil.MakeEnv(t, t.TempDir(), "garbled", "not json")

		res := q.Packages(context.Background(), env)
		require.True(t, res.Failed())
		assert.Equal(t, envs.ErrMalformed, res.Err.Kind)
	})
}

func TestDiskUsageQuerier(t *testing.T) {
	testutil.RequireShell(t)
	runner := command.NewRunner(5 * time.Second)

	t.Run("aligned output", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFiles(t, dir, "a", 1)
		testutil.WriteFiles(t, dir, "b", 2)
		testutil.WriteFiles(t, dir, "c", 3)
		q := NewDiskUsageQuerier(runner, testutil.FakeDu(t, dir), testLogger())

		paths := []string{filepath.Join(dir, "a"), filepath.Join(dir, "b"), filepath.Join(dir, "c")}
		res := q.Sizes(context.Background(), paths)
		sizes, ok := res.Get()
		require.True(t, ok, "unexpected error: %v", res.Err)
		assert.Equal(t, []int64{1000, 2000, 3000}, sizes)
	})

	t.Run("empty input skips the call", func(t *testing.T) {
		q := NewDiskUsageQuerier(runner, "/definitely/not/du", testLogger())
		res := q.Sizes(context.Background(), nil)
		sizes, ok := res.Get()
		require.True(t, ok)
		assert.Empty(t, sizes)
	})

	t.Run("partial failure keeps output", func(t *testing.T) {
		du := filepath.Join(t.TempDir(), "du")
		testutil.WriteScript(t, du, "printf '10\\t/a\\n20\\t/b\\n'; echo 'cannot read' >&2; exit 1")
		q := NewDiskUsageQuerier(runner, du, testLogger())

		res := q.Sizes(context.Background(), []string{"/a", "/b"})
		sizes, ok := res.Get()
		require.True(t, ok)
		assert.Equal(t, []int64{10, 20}, sizes)
	})

	t.Run("failure without output", func(t *testing.T) {
		du := filepath.Join(t.TempDir(), "du")
		testutil.WriteScript(t, du, "echo 'boom' >&2; exit 1")
		q := NewDiskUsageQuerier(runner, du, testLogger())

		res := q.Sizes(context.Background(), []string{"/a"})
		require.True(t, res.Failed())
		assert.Equal(t, envs.ErrFailed, res.Err.Kind)
	})

	t.Run("missing binary", func(t *testing.T) {
		q := NewDiskUsageQuerier(runner, "/definitely/not/du", testLogger())
		res := q.Sizes(context.Background(), []string{"/a"})
		require.True(t, res.Failed())
		assert.Equal(t, envs.ErrNotFound, res.Err.Kind)
	})

	t.Run("malformed output", func(t *testing.T) {
		du := filepath.Join(t.TempDir(), "du")
		testutil.WriteScript(t, du, "echo 'lots /a'")
		q := NewDiskUsageQuerier(runner, du, testLogger())

		res := q.Sizes(context.Background(), []string{"/a"})
		require.True(t, res.Failed())
		assert.Equal(t, envs.ErrMalformed, res.Err.Kind)
	})
}
