package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/pkg/envs"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	dialer     *websocket.Dialer
	socketPath string
}

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// NewRemoteClient creates a RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) *RemoteClient {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}

	transport := &http.Transport{
		DialContext:     dial,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &RemoteClient{
		// Refreshes wait for external queries, so the timeout is generous.
		httpClient: &http.Client{Transport: transport, Timeout: 10 * time.Minute},
		dialer: &websocket.Dialer{
			NetDialContext:   dial,
			HandshakeTimeout: 5 * time.Second,
		},
		socketPath: socketPath,
	}
}

func (c *RemoteClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDaemonNotRunning, "failed to reach daemon").
			WithDetail("socket", c.socketPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envErr errors.EnvError
		if err := json.NewDecoder(resp.Body).Decode(&envErr); err == nil && envErr.Code != "" {
			return &envErr
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode daemon response: %w", err)
	}
	return nil
}

// List implements Client.
func (c *RemoteClient) List(ctx context.Context) ([]envs.Environment, error) {
	var list []envs.Environment
	if err := c.do(ctx, http.MethodGet, "/api/environments", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Get implements Client.
func (c *RemoteClient) Get(ctx context.Context, name string) (envs.Environment, error) {
	var env envs.Environment
	err := c.do(ctx, http.MethodGet, "/api/environments/"+url.PathEscape(name), nil, &env)
	return env, err
}

// Refresh implements Client.
func (c *RemoteClient) Refresh(ctx context.Context, names []string, force bool) (*RefreshResult, error) {
	var body interface{}
	if len(names) > 0 {
		body = struct {
			Names []string `json:"names"`
		}{names}
	}
	var result RefreshResult
	path := "/api/refresh?force=" + strconv.FormatBool(force)
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunningConfig returns the settings the daemon is running with.
func (c *RemoteClient) RunningConfig(ctx context.Context) (map[string]interface{}, error) {
	var cfg map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Stream subscribes to registry updates over a websocket.
func (c *RemoteClient) Stream(ctx context.Context) (<-chan StateUpdate, error) {
	conn, resp, err := c.dialer.DialContext(ctx, "ws://unix/api/stream", nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDaemonNotRunning, "failed to connect to stream").
			WithDetail("socket", c.socketPath)
	}

	ch := make(chan StateUpdate, 10)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	go func() {
		defer close(ch)
		defer stop()
		defer conn.Close()

		for {
			var update StateUpdate
			if err := conn.ReadJSON(&update); err != nil {
				return
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Client = (*RemoteClient)(nil)
