package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	root := t.TempDir()
	makeDirs(t, root, 2, "alpha", "beta")
	f := newFakeQueries()
	f.failPkg["beta"] = true
	r := openRegistry(t, root, f)

	path := filepath.Join(t.TempDir(), "state", "snapshot.yml")
	require.NoError(t, r.Snapshot().Save(path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, filepath.Clean(root), loaded.Root)
	require.Len(t, loaded.Environments, 2)

	alpha := loaded.Environments["alpha"]
	assert.Equal(t, 2, alpha.FileCount)
	assert.Equal(t, envs.Packages{"version": "1"}, alpha.Packages.Value)
	assert.Equal(t, "1000.00 B", alpha.Size.Value.Human)

	beta := loaded.Environments["beta"]
	require.True(t, beta.Packages.Failed())
	assert.Equal(t, envs.ErrFailed, beta.Packages.Err.Kind)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up")
}

func TestLoadSnapshotMissing(t *testing.T) {
	s, err := LoadSnapshot(filepath.Join(t.TempDir(), "none.yml"))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestLoadSnapshotInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: [unterminated"), 0644))
	_, err := LoadSnapshot(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version: 99\n"), 0644))
	_, err = LoadSnapshot(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot")
}

func TestOpenWithHintRevalidates(t *testing.T) {
	root := t.TempDir()
	makeDirs(t, root, 1, "alpha", "beta")
	hint := newFakeQueries()
	hint.version.Store(7)
	snap := openRegistry(t, root, hint).Snapshot()

	addFile(t, root, "beta", "changed-while-down")
	makeDirs(t, root, 1, "gamma")

	f := newFakeQueries()
	f.version.Store(8)
	r := openRegistry(t, root, f, func(o *Options) { o.Hint = snap })

	// Only stale or unknown environments are queried.
	assert.ElementsMatch(t, []string{"beta", "gamma"}, f.packageCalls())

	alpha, _ := r.Get("alpha")
	assert.Equal(t, "7", alpha.Packages.Value["version"])
	assert.Equal(t, filepath.Join(root, "alpha"), alpha.Path)

	beta, _ := r.Get("beta")
	assert.Equal(t, "8", beta.Packages.Value["version"])
	assert.Equal(t, 2, beta.FileCount)
}

func TestOpenIgnoresHintForOtherRoot(t *testing.T) {
	root := t.TempDir()
	makeDirs(t, root, 1, "alpha")
	snap := &Snapshot{
		Version: snapshotVersion,
		Root:    "/somewhere/else",
		Environments: map[string]envs.Environment{
			"alpha": {Name: "alpha", FileCount: 1, Generation: 3, Packages: envs.Ok(envs.Packages{}), Size: envs.Ok(envs.NewSize(1))},
		},
	}

	f := newFakeQueries()
	r := openRegistry(t, root, f, func(o *Options) { o.Hint = snap })
	assert.Equal(t, []string{"alpha"}, f.packageCalls())

	alpha, _ := r.Get("alpha")
	assert.Equal(t, uint64(1), alpha.Generation)
}
