// Package tui holds terminal setup shared by the interactive views.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// InitializeTUI selects the lipgloss color profile. NO_COLOR disables colors,
// CLICOLOR_FORCE=1 or COLORTERM=truecolor forces them even when output is not
// a terminal, and otherwise the profile is detected from stdout.
func InitializeTUI() {
	lipgloss.SetColorProfile(ColorProfile())
}

// ColorProfile returns the color profile InitializeTUI applies.
func ColorProfile() termenv.Profile {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return termenv.Ascii
	case os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor":
		return termenv.TrueColor
	default:
		return termenv.NewOutput(os.Stdout).EnvColorProfile()
	}
}
