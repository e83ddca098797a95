package daemon

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/internal/daemon/server"
	"github.com/grovetools/envwatch/internal/registry"
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

func makeRoot(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0755))
	}
	return root
}

// startDaemon serves a registry over a unix socket and returns the socket path.
func startDaemon(t *testing.T, root string) string {
	t.Helper()
	reg, err := registry.Open(context.Background(), registry.Options{
		Root:     root,
		Packages: &testutil.StaticQueries{Version: "3.12"},
		Sizes:    &testutil.StaticQueries{},
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	// Unix socket paths are length-limited, so keep the directory short.
	dir, err := os.MkdirTemp("", "ewd")
	require.NoError(t, err)
	socket := filepath.Join(dir, "d.sock")

	srv := server.New(reg, testLogger())
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(socket) }()
	require.Eventually(t, func() bool { return Reachable(socket) }, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		require.NoError(t, srv.Shutdown(context.Background()))
		require.NoError(t, <-errc)
		os.RemoveAll(dir)
	})
	return socket
}

func TestRemoteClient(t *testing.T) {
	root := makeRoot(t, "alpha", "beta")
	socket := startDaemon(t, root)

	client := NewClient(Options{Socket: socket})
	defer client.Close()
	require.IsType(t, &RemoteClient{}, client)
	assert.True(t, client.IsRunning())

	ctx := context.Background()
	list, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)

	env, err := client.Get(ctx, "beta")
	require.NoError(t, err)
	pkgs, ok := env.Packages.Get()
	require.True(t, ok)
	assert.Equal(t, "3.12", pkgs["python"])

	_, err = client.Get(ctx, "nope")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEnvNotFound, errors.GetCode(err))

	result, err := client.Refresh(ctx, []string{"alpha"}, true)
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Equal(t, []string{"alpha"}, result.Report.Refreshed)

	result, err = client.Refresh(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Refreshed)
	assert.Nil(t, result.Report)
}

func TestRemoteClientStream(t *testing.T) {
	root := makeRoot(t, "alpha")
	socket := startDaemon(t, root)
	client := NewRemoteClient(socket)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := client.Stream(ctx)
	require.NoError(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, "initial", u.Type)
		require.Len(t, u.Environments, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial update")
	}

	require.NoError(t, os.MkdirAll(filepath.Join(root, "beta"), 0755))
	_, err = client.Refresh(context.Background(), []string{"beta"}, false)
	require.NoError(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, "update", u.Type)
		require.NotNil(t, u.Report)
		assert.Equal(t, []string{"beta"}, u.Report.Added)
	case <-time.After(5 * time.Second):
		t.Fatal("no refresh update")
	}

	cancel()
	for range updates {
	}
}

func TestNewClientFallsBackToLocal(t *testing.T) {
	client := NewClient(Options{
		Socket: filepath.Join(t.TempDir(), "missing.sock"),
		Config: config.Default(),
		Root:   makeRoot(t),
		Logger: testLogger(),
	})
	require.IsType(t, &LocalClient{}, client)
	assert.False(t, client.IsRunning())

	_, err := client.Stream(context.Background())
	assert.Equal(t, errors.ErrCodeDaemonNotRunning, errors.GetCode(err))
}

func TestLocalClient(t *testing.T) {
	root := makeRoot(t, "alpha")
	snapshot := filepath.Join(t.TempDir(), "snapshot.yml")
	queries := &testutil.StaticQueries{Version: "3.10"}

	newClient := func() *LocalClient {
		c := NewLocalClient(config.Default(), root, snapshot, testLogger())
		c.opts = func(o *registry.Options) {
			o.Packages = queries
			o.Sizes = queries
		}
		return c
	}

	client := newClient()
	ctx := context.Background()
	env, err := client.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.EqualValues(t, 1, env.Generation)
	assert.Equal(t, 1, queries.PackageCalls())

	_, err = client.Get(ctx, "missing")
	assert.Equal(t, errors.ErrCodeEnvNotFound, errors.GetCode(err))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "beta"), 0755))
	result, err := client.Refresh(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Refreshed)
	require.NoError(t, client.Close())

	// A second client trusts the snapshot for unchanged environments.
	again := newClient()
	list, err := again.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, queries.PackageCalls())
	require.NoError(t, again.Close())
}

func TestLocalClientMissingRoot(t *testing.T) {
	client := NewLocalClient(config.Default(), filepath.Join(t.TempDir(), "nope"), "", testLogger())
	_, err := client.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRootNotFound, errors.GetCode(err))
}
