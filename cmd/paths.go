package cmd

import (
	"fmt"

	"github.com/grovetools/envwatch/logging"
	"github.com/grovetools/envwatch/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the files and directories envwatch uses.
type PathsOutput struct {
	ConfigDir    string `json:"config_dir"`
	GlobalConfig string `json:"global_config"`
	StateDir     string `json:"state_dir"`
	RuntimeDir   string `json:"runtime_dir"`
	Socket       string `json:"socket"`
	Pidfile      string `json:"pidfile"`
	Snapshot     string `json:"snapshot"`
	LogFile      string `json:"log_file"`
}

// NewPathsCmd creates the `paths` command.
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by envwatch",
		Long: `Prints the configuration, state and runtime locations in JSON format.
ENVWATCH_HOME relocates all of them; otherwise the XDG base directories
are used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "paths")
			if err != nil {
				return err
			}
			output := PathsOutput{
				ConfigDir:    paths.ConfigDir(),
				GlobalConfig: paths.GlobalConfigPath(),
				StateDir:     paths.StateDir(),
				RuntimeDir:   paths.RuntimeDir(),
				Socket:       s.socketPath(),
				Pidfile:      s.pidfilePath(),
				Snapshot:     s.snapshotPath(),
				LogFile:      logging.ConfigFrom(s.cfg).ResolveFilePath(),
			}
			if err := printJSON(cmd.OutOrStdout(), output); err != nil {
				return fmt.Errorf("failed to print paths: %w", err)
			}
			return nil
		},
	}
}
