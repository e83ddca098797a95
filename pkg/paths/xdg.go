// Package paths provides XDG-compliant path resolution for envwatch.
//
// Resolution order:
// 1. ENVWATCH_HOME (portable root) → $ENVWATCH_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/envwatch
// 3. Platform defaults → ~/.config/envwatch, ~/.local/state/envwatch
package paths

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

const appName = "envwatch"

func home() string {
	dir, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return dir
}

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if envHome := os.Getenv("ENVWATCH_HOME"); envHome != "" {
		return filepath.Join(envHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName)
	}
	if h := home(); h != "" {
		return filepath.Join(h, ".config", appName)
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if envHome := os.Getenv("ENVWATCH_HOME"); envHome != "" {
		return filepath.Join(envHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return filepath.Join(xdgStateHome, appName)
	}
	if h := home(); h != "" {
		return filepath.Join(h, ".local", "state", appName)
	}
	return ""
}

// ConfigDir returns the envwatch configuration directory.
func ConfigDir() string {
	return getConfigHome()
}

// StateDir returns the envwatch state directory.
// Used for the snapshot, daemon files and logs.
func StateDir() string {
	return getStateHome()
}

// GlobalConfigPath returns the path of the user-wide config file.
func GlobalConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "envwatch.yml")
}

// RuntimeDir returns the directory for the daemon socket.
// Uses XDG_RUNTIME_DIR when available, falls back to StateDir.
func RuntimeDir() string {
	if envHome := os.Getenv("ENVWATCH_HOME"); envHome != "" {
		return filepath.Join(envHome, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the default daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "envwatchd.sock")
}

// PidFilePath returns the default daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "envwatchd.pid")
}

// SnapshotPath returns the default registry snapshot file.
func SnapshotPath() string {
	return filepath.Join(StateDir(), "snapshot.yml")
}

// LogDir returns the directory holding log files.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// EnsureDirs creates all envwatch directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		RuntimeDir(),
		LogDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
