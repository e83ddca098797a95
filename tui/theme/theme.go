// Package theme holds the color palettes and lipgloss styles shared by the
// envwatch CLI and TUI.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const defaultThemeName = "default"

// Colors encapsulates the palette used by a theme. lipgloss.TerminalColor
// allows a mix of adaptive and static colors.
type Colors struct {
	Green     lipgloss.TerminalColor
	Yellow    lipgloss.TerminalColor
	Red       lipgloss.TerminalColor
	Cyan      lipgloss.TerminalColor
	Violet    lipgloss.TerminalColor
	Orange    lipgloss.TerminalColor
	Text      lipgloss.TerminalColor
	MutedText lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
	Selected  lipgloss.TerminalColor
}

// Theme holds the pre-configured styles.
type Theme struct {
	Name   string
	Colors Colors

	Header lipgloss.Style
	Title  lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Text hierarchy: Bold, Normal, Muted.
	Bold   lipgloss.Style
	Normal lipgloss.Style
	Muted  lipgloss.Style

	Selected    lipgloss.Style
	TableHeader lipgloss.Style
	TableCell   lipgloss.Style
	Box         lipgloss.Style
	Highlight   lipgloss.Style
	Accent      lipgloss.Style
}

var themeRegistry = map[string]func() Colors{
	"default":  newDefaultColors,
	"terminal": newTerminalColors,
}

// DefaultTheme is the theme selected by ENVWATCH_THEME, or the default.
var DefaultTheme = NewThemeWithName(os.Getenv("ENVWATCH_THEME"))

// NewThemeWithName constructs a theme from a palette name. Unknown names
// fall back to the default palette.
func NewThemeWithName(name string) *Theme {
	key := normalizeThemeName(name)
	builder, ok := themeRegistry[key]
	if !ok {
		key = defaultThemeName
		builder = themeRegistry[key]
	}
	return newThemeFromColors(key, builder())
}

// Names lists the available palettes.
func Names() []string {
	return []string{"default", "terminal"}
}

// RenderStatus renders text with the style named by status.
func (t *Theme) RenderStatus(status, text string) string {
	switch status {
	case "success":
		return t.Success.Render(text)
	case "error":
		return t.Error.Render(text)
	case "warning":
		return t.Warning.Render(text)
	case "info":
		return t.Info.Render(text)
	default:
		return text
	}
}

func newThemeFromColors(name string, colors Colors) *Theme {
	return &Theme{
		Name:   name,
		Colors: colors,

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Cyan).
			MarginBottom(1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Underline(true),

		Success: lipgloss.NewStyle().Foreground(colors.Green),
		Error:   lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colors.Yellow),
		Info:    lipgloss.NewStyle().Foreground(colors.Cyan),

		Bold:   lipgloss.NewStyle().Bold(true),
		Normal: lipgloss.NewStyle(),
		Muted:  lipgloss.NewStyle().Foreground(colors.MutedText),

		Selected: lipgloss.NewStyle().
			Background(colors.Selected).
			Foreground(colors.Text).
			Bold(true),

		TableHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Violet).
			Padding(0, 1),

		TableCell: lipgloss.NewStyle().Padding(0, 1),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Border).
			Padding(0, 1),

		Highlight: lipgloss.NewStyle().Foreground(colors.Orange).Bold(true),
		Accent:    lipgloss.NewStyle().Foreground(colors.Violet).Bold(true),
	}
}

func normalizeThemeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	return strings.ReplaceAll(normalized, "_", "-")
}

func newDefaultColors() Colors {
	return Colors{
		Green:     lipgloss.AdaptiveColor{Light: "#3A7D44", Dark: "#8CC265"},
		Yellow:    lipgloss.AdaptiveColor{Light: "#9A6B00", Dark: "#E5C07B"},
		Red:       lipgloss.AdaptiveColor{Light: "#B3261E", Dark: "#E06C75"},
		Cyan:      lipgloss.AdaptiveColor{Light: "#1F6F8B", Dark: "#56B6C2"},
		Violet:    lipgloss.AdaptiveColor{Light: "#6A3FA0", Dark: "#C678DD"},
		Orange:    lipgloss.AdaptiveColor{Light: "#B85500", Dark: "#D19A66"},
		Text:      lipgloss.AdaptiveColor{Light: "#24292F", Dark: "#D7DAE0"},
		MutedText: lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#7F848E"},
		Border:    lipgloss.AdaptiveColor{Light: "#C8CDD3", Dark: "#3E4451"},
		Selected:  lipgloss.AdaptiveColor{Light: "#DDE6F3", Dark: "#2C323C"},
	}
}

func newTerminalColors() Colors {
	return Colors{
		Green:     lipgloss.Color("2"),
		Yellow:    lipgloss.Color("3"),
		Red:       lipgloss.Color("1"),
		Cyan:      lipgloss.Color("6"),
		Violet:    lipgloss.Color("5"),
		Orange:    lipgloss.Color("208"),
		Text:      lipgloss.Color("7"),
		MutedText: lipgloss.Color("8"),
		Border:    lipgloss.Color("8"),
		Selected:  lipgloss.Color("8"),
	}
}
