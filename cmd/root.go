// Package cmd implements the envwatch command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/envwatch/cli"
	"github.com/grovetools/envwatch/pkg/profiling"
	"github.com/grovetools/envwatch/version"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the envwatch command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"envwatch",
		"Track conda environments and refresh their metadata when they change",
	)
	root.Long = `envwatch keeps an inventory of the environments under a root directory
(by default ~/anaconda3/envs). Package lists and disk usage are only
re-queried for environments whose file count changed.

Commands talk to the daemon when it is running and fall back to an
in-process registry otherwise.`
	root.Example = `# list environments with sizes and package counts
envwatch list

# re-query one environment even if nothing changed
envwatch refresh --force py311

# run the background daemon
envwatch daemon start`
	cli.SetVersionTemplate(root, version.GetInfo())

	root.AddCommand(
		NewListCmd(),
		NewShowCmd(),
		NewRefreshCmd(),
		NewWatchCmd(),
		NewDaemonCmd(),
		NewTuiCmd(),
		NewLogsCmd(),
		NewConfigCmd(),
		NewPathsCmd(),
		cli.NewVersionCommand("envwatch"),
	)

	profiling.Install(root)
	cli.ApplyStyledHelpRecursive(root)
	return root
}

// Execute runs envwatch with the process arguments and returns the exit code.
// SIGINT and SIGTERM cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		if cmd == nil {
			cmd = root
		}
		_ = cli.NewErrorHandler(cmd.ErrOrStderr(), cli.GetOptions(cmd).Verbose).Handle(err)
		return 1
	}
	return 0
}
