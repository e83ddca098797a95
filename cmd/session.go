package cmd

import (
	"encoding/json"
	"io"

	"github.com/grovetools/envwatch/cli"
	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/pkg/daemon"
	"github.com/grovetools/envwatch/pkg/paths"
	"github.com/grovetools/envwatch/pkg/profiling"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// session is the resolved configuration shared by one command invocation.
type session struct {
	cfg    *config.Config
	root   string
	logger *logrus.Entry
	opts   cli.CommandOptions
}

func loadSession(cmd *cobra.Command, component string) (*session, error) {
	defer profiling.Begin("config").End()

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root, err := cli.ResolveRoot(cmd, cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		root:   root,
		logger: cli.GetLogger(cmd, component),
		opts:   cli.GetOptions(cmd),
	}, nil
}

func (s *session) socketPath() string {
	if s.cfg.Daemon.Socket != "" {
		return s.cfg.Daemon.Socket
	}
	return paths.SocketPath()
}

func (s *session) pidfilePath() string {
	if s.cfg.Daemon.Pidfile != "" {
		return s.cfg.Daemon.Pidfile
	}
	return paths.PidFilePath()
}

func (s *session) snapshotPath() string {
	return registry.SnapshotPath(s.cfg, paths.SnapshotPath())
}

// client returns the daemon client, or the in-process fallback.
func (s *session) client() daemon.Client {
	return daemon.NewClient(daemon.Options{
		Socket:       s.socketPath(),
		Config:       s.cfg,
		Root:         s.root,
		SnapshotPath: s.snapshotPath(),
		Logger:       s.logger,
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
