// Package server provides the HTTP API of the envwatch daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/grovetools/envwatch/version"
	"github.com/sirupsen/logrus"
)

// pingInterval keeps idle stream connections alive.
const pingInterval = 30 * time.Second

// RunningConfig holds the settings the daemon is running with. It is exposed
// via /api/config so clients can verify what is active.
type RunningConfig struct {
	Root           string        `json:"root"`
	ConfigFile     string        `json:"config_file,omitempty"`
	Workers        int           `json:"workers"`
	Debounce       time.Duration `json:"debounce"`
	RescanInterval time.Duration `json:"rescan_interval"`
	QueryTimeout   time.Duration `json:"query_timeout"`
	ShutdownGrace  time.Duration `json:"shutdown_grace"`
	SnapshotPath   string        `json:"snapshot_path,omitempty"`
	PID            int           `json:"pid"`
	StartedAt      time.Time     `json:"started_at"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	registry      *registry.Registry
	runningConfig *RunningConfig
	upgrader      websocket.Upgrader

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a new Server serving reg.
func New(reg *registry.Registry, logger *logrus.Entry) *Server {
	return &Server{
		logger:   logger,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Only local clients can reach the socket.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.GetInfo().Short(),
		})
	})
	mux.HandleFunc("GET /api/environments", s.handleListEnvironments)
	mux.HandleFunc("GET /api/environments/{name}", s.handleGetEnvironment)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
// An existing socket is removed only when nothing accepts connections on it.
func (s *Server) ListenAndServe(socketPath string) error {
	if _, err := os.Stat(socketPath); err == nil {
		if conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond); err == nil {
			conn.Close()
			return errors.New(errors.ErrCodeInternal, "another daemon is serving "+socketPath).
				WithDetail("socket", socketPath)
		}
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		_ = listener.Close()
		return nil
	default:
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and ends open streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.mu.Lock()
	s.closeOnce.Do(func() { close(s.done) })
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *errors.EnvError) {
	writeJSON(w, status, err)
}

func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	env, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.EnvNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// RefreshRequest optionally names the environments to refresh.
type RefreshRequest struct {
	Names []string `json:"names,omitempty"`
}

// RefreshResponse reports the outcome of POST /api/refresh. Report is set
// when specific names were requested.
type RefreshResponse struct {
	Refreshed int              `json:"refreshed"`
	Report    *registry.Report `json:"report,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidInput, "invalid force value: "+v))
			return
		}
		force = parsed
	}

	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}
	}

	log := s.logger.WithFields(logrus.Fields{"force": force, "names": req.Names})
	log.Debug("Refresh requested")

	if len(req.Names) > 0 {
		report := s.registry.Refresh(r.Context(), req.Names, force)
		writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: len(report.Refreshed), Report: &report})
		return
	}

	n, err := s.registry.RefreshAll(r.Context(), force)
	if err != nil {
		log.WithError(err).Warn("Refresh failed")
		envErr, ok := err.(*errors.EnvError)
		if !ok {
			envErr = errors.Wrap(err, errors.ErrCodeInternal, "refresh failed")
		}
		writeError(w, http.StatusInternalServerError, envErr)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: n})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}

// streamMessage is one websocket frame on /api/stream. It matches
// daemon.StateUpdate on the client side.
type streamMessage struct {
	Type         string             `json:"type"`
	Environments []envs.Environment `json:"environments,omitempty"`
	Report       *registry.Report   `json:"report,omitempty"`
	At           time.Time          `json:"at"`
}

// handleStream upgrades to a websocket and pushes the full inventory followed
// by every registry update until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Stream upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.registry.Subscribe()
	defer s.registry.Unsubscribe(updates)

	// Reads are only needed to notice the client closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("Stream client connected")
	if err := conn.WriteJSON(streamMessage{
		Type:         "initial",
		Environments: s.registry.List(),
		At:           time.Now(),
	}); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			s.logger.Debug("Stream client disconnected")
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case u, ok := <-updates:
			if !ok {
				return
			}
			report := u.Report
			if err := conn.WriteJSON(streamMessage{
				Type:         "update",
				Environments: u.Environments,
				Report:       &report,
				At:           u.At,
			}); err != nil {
				s.logger.WithError(err).Debug("Stream write failed")
				return
			}
		}
	}
}
