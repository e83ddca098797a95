package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/stretchr/testify/require"
)

// RequireShell skips the test if /bin/sh is not available
func RequireShell(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// WriteScript writes an executable shell script at path
func WriteScript(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	content := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
}

// WriteFiles creates n small files under dir/sub
func WriteFiles(t *testing.T, dir, sub string, n int) {
	t.Helper()

	target := filepath.Join(dir, sub)
	require.NoError(t, os.MkdirAll(target, 0755))
	for i := 0; i < n; i++ {
		name := filepath.Join(target, fmt.Sprintf("file-%d.txt", i))
		require.NoError(t, os.WriteFile(name, []byte("data"), 0644))
	}
}

// MakeEnv creates an environment directory under root with a fake python
// interpreter that prints pipJSON for `-m pip list --format=json`. The
// interpreter counts as one file of the environment.
func MakeEnv(t *testing.T, root, name, pipJSON string) string {
	t.Helper()

	env := filepath.Join(root, name)
	WriteScript(t, filepath.Join(env, "bin", "python"), fmt.Sprintf("cat <<'JSON'\n%s\nJSON", pipJSON))
	return env
}

// MakeRoot creates a temporary environment root with the given environments,
// each with an empty package list.
func MakeRoot(t *testing.T, names ...string) string {
	t.Helper()
	RequireShell(t)

	root := t.TempDir()
	for _, name := range names {
		MakeEnv(t, root, name, "[]")
	}
	return root
}

// FakeDu writes a du replacement that prints one "<bytes>\t<path>" line per
// argument after "--", using 1000 bytes per regular file below the path.
func FakeDu(t *testing.T, dir string) string {
	t.Helper()
	RequireShell(t)

	path := filepath.Join(dir, "fake-du")
	WriteScript(t, path, `seen=0
for arg in "$@"; do
  if [ "$seen" = 1 ]; then
    n=$(find "$arg" -type f | wc -l)
    printf '%d\t%s\n' $((n * 1000)) "$arg"
  fi
  [ "$arg" = "--" ] && seen=1
done`)
	return path
}

// StaticQueries answers package and size queries in-process. Every
// environment reports python at Version and a size of 2048 bytes.
type StaticQueries struct {
	Version string

	pkgCalls  atomic.Int32
	sizeCalls atomic.Int32
}

// Packages implements query.PackageQuerier.
func (q *StaticQueries) Packages(ctx context.Context, envPath string) envs.Result[envs.Packages] {
	q.pkgCalls.Add(1)
	return envs.Ok(envs.Packages{"python": q.Version})
}

// Sizes implements query.SizeQuerier.
func (q *StaticQueries) Sizes(ctx context.Context, paths []string) envs.Result[[]int64] {
	q.sizeCalls.Add(1)
	sizes := make([]int64, len(paths))
	for i := range sizes {
		sizes[i] = 2048
	}
	return envs.Ok(sizes)
}

// PackageCalls returns how many package queries ran.
func (q *StaticQueries) PackageCalls() int {
	return int(q.pkgCalls.Load())
}

// SizeCalls returns how many batched size queries ran.
func (q *StaticQueries) SizeCalls() int {
	return int(q.sizeCalls.Load())
}
