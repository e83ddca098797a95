package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/grovetools/envwatch/pkg/profiling"
	"github.com/grovetools/envwatch/tui/components/table"
	"github.com/grovetools/envwatch/tui/envlist"
	"github.com/grovetools/envwatch/tui/theme"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewListCmd creates the `list` command.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List environments with their size and package count",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "list")
			if err != nil {
				return err
			}
			client := s.client()
			defer client.Close()

			var list []envs.Environment
			err = profiling.Track("list", func() error {
				var err error
				list, err = client.List(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if s.opts.JSONOutput {
				if list == nil {
					list = []envs.Environment{}
				}
				return printJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintf(out, "No environments under %s\n", s.root)
				return nil
			}
			fmt.Fprintln(out, renderEnvTable(list, terminalWidth(), theme.DefaultTheme))
			return nil
		},
	}
}

// terminalWidth returns the width of stdout, or 0 when it is not a terminal.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func renderEnvTable(list []envs.Environment, width int, t *theme.Theme) string {
	rows := make([][]string, 0, len(list))
	statuses := make([]string, 0, len(list))
	for _, env := range list {
		status := envlist.Status(env)
		statuses = append(statuses, status)
		rows = append(rows, []string{
			env.Name,
			strconv.Itoa(env.FileCount),
			envlist.SizeText(env),
			envlist.PackagesText(env),
			status,
			envlist.Age(env.RefreshedAt),
		})
	}

	const statusCol = 4
	return table.NewBuilder().
		WithTheme(t).
		WithHeaders("NAME", "FILES", "SIZE", "PACKAGES", "STATUS", "REFRESHED").
		WithRows(rows...).
		WithWidth(width).
		WithCellStyle(func(row, col int, base lipgloss.Style) lipgloss.Style {
			if col != statusCol || row < 0 || row >= len(statuses) {
				return base
			}
			switch statuses[row] {
			case "error":
				return base.Foreground(t.Colors.Red)
			case "pending":
				return base.Foreground(t.Colors.Yellow)
			default:
				return base.Foreground(t.Colors.Green)
			}
		}).
		Render()
}
