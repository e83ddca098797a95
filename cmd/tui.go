package cmd

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/envwatch/logging"
	"github.com/grovetools/envwatch/tui"
	"github.com/grovetools/envwatch/tui/envlist"
	"github.com/grovetools/envwatch/tui/theme"
	"github.com/spf13/cobra"
)

// NewTuiCmd creates the `tui` command.
func NewTuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse environments interactively",
		Long: `Shows the environment table with package details for the selected row.
When the daemon is running the view updates live as environments change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "tui")
			if err != nil {
				return err
			}
			client := s.client()
			defer client.Close()

			// Log lines on stderr would tear the alternate screen.
			logging.SetGlobalOutput(io.Discard)
			defer logging.SetGlobalOutput(os.Stderr)

			tui.InitializeTUI()
			ctx := cmd.Context()
			model := envlist.New(ctx, client, theme.DefaultTheme)
			p := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(ctx),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := p.Run(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
