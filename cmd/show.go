package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/grovetools/envwatch/tui/components/table"
	"github.com/grovetools/envwatch/tui/envlist"
	"github.com/grovetools/envwatch/tui/theme"
	"github.com/spf13/cobra"
)

// NewShowCmd creates the `show` command.
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one environment and its installed packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "show")
			if err != nil {
				return err
			}
			client := s.client()
			defer client.Close()

			env, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if s.opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), env)
			}
			writeEnvDetails(cmd.OutOrStdout(), env, theme.DefaultTheme)
			return nil
		},
	}
}

func writeEnvDetails(w io.Writer, env envs.Environment, t *theme.Theme) {
	field := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", t.Muted.Render(fmt.Sprintf("%-10s", label)), value)
	}

	fmt.Fprintln(w, t.Title.Render(env.Name))
	field("Path", env.Path)
	field("Files", fmt.Sprintf("%d", env.FileCount))
	field("Size", envlist.SizeText(env))
	field("Status", envlist.Status(env))
	field("Refreshed", envlist.Age(env.RefreshedAt))
	fmt.Fprintln(w)

	if env.Packages.Failed() {
		fmt.Fprintln(w, t.Error.Render("Packages unavailable: "+env.Packages.Err.Error()))
		return
	}
	pkgs, ok := env.Packages.Get()
	if !ok {
		fmt.Fprintln(w, t.Muted.Render("Packages not queried yet"))
		return
	}
	if len(pkgs) == 0 {
		fmt.Fprintln(w, t.Muted.Render("No packages installed"))
		return
	}

	names := make([]string, 0, len(pkgs))
	for name := range pkgs {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, pkgs[name]})
	}
	fmt.Fprintln(w, table.NewBuilder().
		WithTheme(t).
		WithHeaders("PACKAGE", "VERSION").
		WithRows(rows...).
		Render())
}
