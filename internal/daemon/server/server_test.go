package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/grovetools/envwatch/testutil"
	"github.com/grovetools/envwatch/version"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestServer(t *testing.T, names ...string) (*Server, *registry.Registry, *httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name, "bin"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, name, "bin", "python"), []byte("x"), 0755))
	}

	reg, err := registry.Open(context.Background(), registry.Options{
		Root:     root,
		Packages: &testutil.StaticQueries{Version: "3.11"},
		Sizes:    &testutil.StaticQueries{},
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	srv := New(reg, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, reg, ts, root
}

func TestHealth(t *testing.T) {
	_, _, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, version.GetInfo().Short(), health["version"])
}

func TestListAndGetEnvironments(t *testing.T) {
	_, _, ts, _ := newTestServer(t, "alpha", "beta")

	resp, err := http.Get(ts.URL + "/api/environments")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []envs.Environment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "beta", list[1].Name)

	resp, err = http.Get(ts.URL + "/api/environments/beta")
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envs.Environment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	pkgs, ok := env.Packages.Get()
	require.True(t, ok)
	assert.Equal(t, "3.11", pkgs["python"])
	size, ok := env.Size.Get()
	require.True(t, ok)
	assert.Equal(t, "2.00 KB", size.Human)
}

func TestGetUnknownEnvironment(t *testing.T) {
	_, _, ts, _ := newTestServer(t, "alpha")

	resp, err := http.Get(ts.URL + "/api/environments/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var envErr errors.EnvError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envErr))
	assert.Equal(t, errors.ErrCodeEnvNotFound, envErr.Code)
}

func TestRefresh(t *testing.T) {
	_, reg, ts, root := newTestServer(t, "alpha")

	t.Run("all picks up new directories", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "beta"), 0755))

		resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out RefreshResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, 1, out.Refreshed)
		assert.Nil(t, out.Report)
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("named with force", func(t *testing.T) {
		body := bytes.NewBufferString(`{"names":["alpha"]}`)
		resp, err := http.Post(ts.URL+"/api/refresh?force=true", "application/json", body)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out RefreshResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.NotNil(t, out.Report)
		assert.Equal(t, []string{"alpha"}, out.Report.Refreshed)
	})

	t.Run("bad force value", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/refresh?force=maybe", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/refresh")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestGetConfig(t *testing.T) {
	srv, _, ts, root := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/config")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	srv.SetRunningConfig(&RunningConfig{Root: root, Workers: 4, Debounce: 3 * time.Second})
	resp, err = http.Get(ts.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	var cfg RunningConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, 3*time.Second, cfg.Debounce)
}

func TestStream(t *testing.T) {
	_, _, ts, root := newTestServer(t, "alpha")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var initial streamMessage
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "initial", initial.Type)
	require.Len(t, initial.Environments, 1)
	assert.Equal(t, "alpha", initial.Environments[0].Name)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "beta"), 0755))
	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	var update streamMessage
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "update", update.Type)
	require.NotNil(t, update.Report)
	assert.Equal(t, []string{"beta"}, update.Report.Added)
	require.Len(t, update.Environments, 1)
	assert.Equal(t, "beta", update.Environments[0].Name)
}

func TestListenAndServeOnSocket(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "alpha")
	// Unix socket paths are length-limited, so keep the directory short.
	dir, err := os.MkdirTemp("", "ew")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "d.sock")
	require.NoError(t, os.WriteFile(socket, nil, 0600))

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(socket) }()

	require.Eventually(t, func() bool {
		info, err := os.Stat(socket)
		return err == nil && info.Mode()&os.ModeSocket != 0
	}, 2*time.Second, 10*time.Millisecond)

	info, err := os.Stat(socket)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A second server must not steal a socket that is being served.
	other, _, _, _ := newTestServer(t, "beta")
	err = other.ListenAndServe(socket)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another daemon")

	client := http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}}
	resp, err := client.Get("http://envwatchd/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-errc)
}
