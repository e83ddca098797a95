package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/envwatch/config"
	"github.com/sirupsen/logrus"
)

// Options selects where NewClient looks for the daemon and what the local
// fallback opens.
type Options struct {
	Socket       string
	Config       *config.Config
	Root         string
	SnapshotPath string
	Logger       *logrus.Entry
}

// NewClient returns a RemoteClient if the daemon answers on the socket and a
// LocalClient otherwise. Callers use the same API in both modes.
func NewClient(opts Options) Client {
	if Reachable(opts.Socket) {
		return NewRemoteClient(opts.Socket)
	}
	return NewLocalClient(opts.Config, opts.Root, opts.SnapshotPath, opts.Logger)
}

// Reachable reports whether something accepts connections on socketPath.
func Reachable(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
