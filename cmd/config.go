package cmd

import (
	"fmt"
	"os"

	"github.com/grovetools/envwatch/cli"
	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/schema"
	"github.com/grovetools/envwatch/tui/theme"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate envwatch.yml",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSchemaCmd(), newConfigValidateCmd())
	return cmd
}

// configSourceList returns the files the effective configuration is read from.
func configSourceList(cmd *cobra.Command) []string {
	if file := cli.GetOptions(cmd).ConfigFile; file != "" {
		return []string{file}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	return config.Sources(cwd)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with defaults applied",
		Long: `Shows the configuration every command uses, built by merging:
1. Global config (~/.config/envwatch/envwatch.yml)
2. Project config (envwatch.yml or envwatch.toml, searched upward)
The resolved environment root is printed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "config")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sources := configSourceList(cmd)

			if s.opts.JSONOutput {
				return printJSON(out, map[string]interface{}{
					"sources": sources,
					"root":    s.root,
					"config":  s.cfg,
				})
			}

			t := theme.DefaultTheme
			if len(sources) == 0 {
				fmt.Fprintln(out, t.Muted.Render("# No configuration files; defaults only"))
			}
			for _, src := range sources {
				fmt.Fprintln(out, t.Muted.Render("# Source: "+src))
			}
			fmt.Fprintln(out, t.Muted.Render("# Resolved root: "+s.root))
			data, err := yaml.Marshal(s.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(out, string(data))
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of envwatch.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(schema.Embedded())
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				err     error
				sources []string
			)
			if len(args) == 1 {
				sources = args
				_, err = config.Load(args[0])
			} else {
				sources = configSourceList(cmd)
				_, err = cli.LoadConfig(cmd)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			t := theme.DefaultTheme
			if len(sources) == 0 {
				fmt.Fprintln(out, t.Success.Render("No configuration files; defaults are valid"))
				return nil
			}
			for _, src := range sources {
				fmt.Fprintf(out, "%s %s\n", t.Success.Render("valid"), src)
			}
			return nil
		},
	}
}
