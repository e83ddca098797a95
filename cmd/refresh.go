package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/grovetools/envwatch/cli"
	"github.com/grovetools/envwatch/pkg/daemon"
	"github.com/grovetools/envwatch/pkg/profiling"
	"github.com/grovetools/envwatch/tui/theme"
	"github.com/spf13/cobra"
)

// NewRefreshCmd creates the `refresh` command.
func NewRefreshCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh [names...]",
		Short: "Re-check environments and re-query the ones that changed",
		Long: `Re-checks the named environments, or all of them. An environment is
re-queried when its file count changed since the last refresh or its last
query failed. --force re-queries regardless.`,
		Example: `envwatch refresh
envwatch refresh --force py311 py312`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "refresh")
			if err != nil {
				return err
			}
			client := s.client()
			defer client.Close()

			progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "Refreshing")
			if !s.opts.JSONOutput {
				progress.Start()
			}

			var result *daemon.RefreshResult
			err = profiling.Track("refresh", func() error {
				var err error
				result, err = client.Refresh(cmd.Context(), args, force)
				return err
			})
			if err != nil {
				return err
			}

			if s.opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			progress.Done(fmt.Sprintf("Refreshed %d environment(s)", result.Refreshed))
			writeRefreshReport(cmd.OutOrStdout(), result, theme.DefaultTheme)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-query even if the file count is unchanged")
	return cmd
}

func writeRefreshReport(w io.Writer, result *daemon.RefreshResult, t *theme.Theme) {
	if result.Report == nil {
		return
	}
	line := func(status, label string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(w, "%s %s\n", t.RenderStatus(status, fmt.Sprintf("%-10s", label)), strings.Join(names, ", "))
	}
	r := result.Report
	line("success", "refreshed", r.Refreshed)
	line("info", "added", r.Added)
	line("", "unchanged", r.Skipped)
	line("warning", "removed", r.Removed)
	line("error", "failed", r.Failed)
}
