package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/internal/daemon/collector"
	"github.com/grovetools/envwatch/internal/daemon/engine"
	"github.com/grovetools/envwatch/internal/daemon/pidfile"
	"github.com/grovetools/envwatch/internal/daemon/server"
	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/internal/watch"
	"github.com/grovetools/envwatch/logging"
	"github.com/grovetools/envwatch/pkg/daemon"
	"github.com/grovetools/envwatch/pkg/paths"
	"github.com/grovetools/envwatch/pkg/process"
	"github.com/spf13/cobra"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or control the envwatch daemon",
		Long: `The daemon (envwatchd) keeps the registry in memory, watches the root for
changes and serves other envwatch commands over a unix socket.`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "envwatchd")
			if err != nil {
				return err
			}
			ctx := logging.WithWriter(cmd.Context(), cmd.OutOrStdout())
			return runDaemon(ctx, s)
		},
	}
}

func runDaemon(ctx context.Context, s *session) error {
	logger := s.logger
	ulog := logging.NewUnifiedLogger("envwatchd")
	pidPath := s.pidfilePath()
	sockPath := s.socketPath()

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create state directories: %w", err)
	}
	if err := pidfile.Acquire(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.WithError(err).Error("Failed to release pidfile")
		}
	}()

	opts, err := registry.OptionsFromConfig(s.cfg, s.root, logger)
	if err != nil {
		return err
	}
	snapshotPath := s.snapshotPath()
	if snapshotPath != "" {
		hint, err := registry.LoadSnapshot(snapshotPath)
		if err != nil {
			logger.WithError(err).Warn("Ignoring unreadable snapshot")
		}
		opts.Hint = hint
	}

	started := time.Now()
	reg, err := registry.Open(ctx, opts)
	if err != nil {
		return err
	}
	ulog.Success(fmt.Sprintf("Registry ready: %d environment(s) under %s", reg.Len(), s.root)).
		Field("root", s.root).
		Field("envs", reg.Len()).
		Field("duration", time.Since(started).Round(time.Millisecond)).
		Log(ctx)

	configFiles, loadConfig := configSources(s.opts.ConfigFile)

	eng := engine.New(reg, logger)
	eng.Register(collector.NewWatchCollector(
		watch.NewFSNotifySource(logger.WithField("collector", "watch")),
		opts.Exclude,
		s.cfg.Watch.DebounceDuration(),
		s.cfg.Watch.RestartBackoffDuration(),
		logger.WithField("collector", "watch"),
	))
	eng.Register(collector.NewRescanCollector(s.cfg.Watch.RescanDuration(), logger.WithField("collector", "rescan")))
	if snapshotPath != "" {
		eng.Register(collector.NewSnapshotCollector(snapshotPath, logger.WithField("collector", "snapshot")))
	}
	eng.Register(collector.NewConfigCollector(configFiles, s.cfg, loadConfig, logger.WithField("collector", "config")))

	srv := server.New(reg, logger)
	srv.SetRunningConfig(&server.RunningConfig{
		Root:           s.root,
		ConfigFile:     s.opts.ConfigFile,
		Workers:        s.cfg.Refresh.Workers,
		Debounce:       s.cfg.Watch.DebounceDuration(),
		RescanInterval: s.cfg.Watch.RescanDuration(),
		QueryTimeout:   s.cfg.Refresh.QueryTimeoutDuration(),
		ShutdownGrace:  s.cfg.Refresh.ShutdownGraceDuration(),
		SnapshotPath:   snapshotPath,
		PID:            os.Getpid(),
		StartedAt:      started,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Start(ctx)
	}()

	go func() {
		<-ctx.Done()
		logger.Info("Received stop signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
	}()

	ulog.Info(fmt.Sprintf("Listening on %s (PID %d)", sockPath, os.Getpid())).
		Field("socket", sockPath).
		Field("pid", os.Getpid()).
		Log(ctx)
	serveErr := srv.ListenAndServe(sockPath)
	cancel()
	<-engineDone
	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	_ = os.Remove(sockPath)
	ulog.Info("Daemon stopped").Log(ctx)
	return nil
}

// configSources returns the files the daemon's configuration came from and
// how to reload it.
func configSources(explicit string) ([]string, collector.LoadFunc) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			abs = explicit
		}
		return []string{abs}, func() (*config.Config, error) { return config.Load(abs) }
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, config.LoadDefault
	}
	return config.Sources(cwd), func() (*config.Config, error) { return config.LoadFrom(cwd) }
}

func newDaemonStopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "envwatchd")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			running, pid, err := pidfile.IsRunning(s.pidfilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}

			stopped, err := process.Terminate(pid, timeout, 100*time.Millisecond)
			if err != nil {
				return fmt.Errorf("failed to stop process %d: %w", pid, err)
			}
			if !stopped {
				return errors.New(errors.ErrCodeInternal,
					fmt.Sprintf("daemon (PID %d) did not exit within %s", pid, timeout)).
					WithDetail("pid", pid)
			}
			fmt.Fprintf(out, "Stopped daemon (PID %d)\n", pid)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

// daemonStatus is the --json form of `daemon status`.
type daemonStatus struct {
	Running bool                   `json:"running"`
	PID     int                    `json:"pid,omitempty"`
	Socket  string                 `json:"socket"`
	Config  map[string]interface{} `json:"config,omitempty"`
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "envwatchd")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			running, pid, err := pidfile.IsRunning(s.pidfilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			status := daemonStatus{Running: running, PID: pid, Socket: s.socketPath()}
			if !running {
				status.PID = 0
			}
			if running && daemon.Reachable(status.Socket) {
				client := daemon.NewRemoteClient(status.Socket)
				defer client.Close()
				if cfg, err := client.RunningConfig(cmd.Context()); err == nil {
					status.Config = cfg
				}
			}

			if s.opts.JSONOutput {
				return printJSON(out, status)
			}
			if !running {
				return errors.DaemonNotRunning(status.Socket)
			}

			fmt.Fprintf(out, "Running (PID: %d)\nSocket: %s\n", pid, status.Socket)
			for _, key := range []string{"root", "workers", "snapshot_path", "started_at"} {
				if v, ok := status.Config[key]; ok {
					fmt.Fprintf(out, "%s: %v\n", key, v)
				}
			}
			return nil
		},
	}
}
