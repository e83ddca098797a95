// Package daemon provides a client for the envwatch daemon (envwatchd).
// It implements a transparent fallback: if the daemon is running, requests go
// over its socket; if not, a registry is opened in-process.
package daemon

import (
	"context"
	"time"

	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/pkg/envs"
)

// Client defines the operations shared by the remote and local modes.
type Client interface {
	// List returns every registered environment sorted by name.
	List(ctx context.Context) ([]envs.Environment, error)

	// Get returns one environment by name.
	Get(ctx context.Context, name string) (envs.Environment, error)

	// Refresh re-checks the named environments, or every environment when
	// names is empty. force skips the file-count comparison.
	Refresh(ctx context.Context, names []string, force bool) (*RefreshResult, error)

	// Stream subscribes to registry updates. The channel is closed when ctx
	// ends or the connection is lost. Only the daemon can stream.
	Stream(ctx context.Context) (<-chan StateUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// RefreshResult reports a refresh. Report is set when names were given.
type RefreshResult struct {
	Refreshed int              `json:"refreshed"`
	Report    *registry.Report `json:"report,omitempty"`
}

// StateUpdate is one message pushed by the daemon. Type is "initial" for the
// full inventory sent on connect and "update" for a refresh cycle.
type StateUpdate struct {
	Type         string             `json:"type"`
	Environments []envs.Environment `json:"environments,omitempty"`
	Report       *registry.Report   `json:"report,omitempty"`
	At           time.Time          `json:"at"`
}
