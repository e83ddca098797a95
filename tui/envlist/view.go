package envlist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/grovetools/envwatch/pkg/daemon"
	"github.com/grovetools/envwatch/pkg/envs"
)

func columns(width int) []table.Column {
	fixed := 8 + 12 + 10 + 10 + 10
	name := width - fixed - 12
	if name < 12 {
		name = 12
	}
	return []table.Column{
		{Title: "NAME", Width: name},
		{Title: "FILES", Width: 8},
		{Title: "SIZE", Width: 12},
		{Title: "PACKAGES", Width: 10},
		{Title: "STATUS", Width: 10},
		{Title: "REFRESHED", Width: 10},
	}
}

// Status summarizes the expensive fields of env as ok, pending or error.
func Status(env envs.Environment) string {
	switch {
	case env.HasErrors():
		return "error"
	case !env.Populated():
		return "pending"
	default:
		return "ok"
	}
}

// SizeText renders the size field, or its error kind.
func SizeText(env envs.Environment) string {
	if size, ok := env.Size.Get(); ok {
		return size.Human
	}
	if env.Size.Failed() {
		return string(env.Size.Err.Kind)
	}
	return "-"
}

// PackagesText renders the package count, or the error kind.
func PackagesText(env envs.Environment) string {
	if pkgs, ok := env.Packages.Get(); ok {
		return strconv.Itoa(len(pkgs))
	}
	if env.Packages.Failed() {
		return string(env.Packages.Err.Kind)
	}
	return "-"
}

// Age renders how long ago t was, coarsely.
func Age(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("2006-01-02")
	}
}

func row(env envs.Environment) table.Row {
	return table.Row{
		env.Name,
		strconv.Itoa(env.FileCount),
		SizeText(env),
		PackagesText(env),
		Status(env),
		Age(env.RefreshedAt),
	}
}

func refreshStatus(result *daemon.RefreshResult) string {
	if result == nil {
		return ""
	}
	if result.Report != nil && len(result.Report.Failed) > 0 {
		return fmt.Sprintf("Refreshed %d, failed: %s", result.Refreshed, strings.Join(result.Report.Failed, ", "))
	}
	if result.Refreshed == 0 {
		return "Nothing changed"
	}
	return fmt.Sprintf("Refreshed %d environment(s)", result.Refreshed)
}

func (m *Model) updateDetails() {
	if !m.showPkgs {
		return
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.envs) {
		m.details.SetContent("")
		return
	}
	env := m.envs[idx]

	var b strings.Builder
	b.WriteString(m.theme.Bold.Render(env.Name))
	b.WriteString(m.theme.Muted.Render("  " + env.Path))
	b.WriteString("\n")

	pkgs, ok := env.Packages.Get()
	switch {
	case ok:
		names := make([]string, 0, len(pkgs))
		for name := range pkgs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "%s %s\n", name, m.theme.Muted.Render(pkgs[name]))
		}
	case env.Packages.Failed():
		b.WriteString(m.theme.Error.Render(env.Packages.Err.Error()))
	default:
		b.WriteString(m.theme.Muted.Render("packages not queried yet"))
	}
	m.details.SetContent(b.String())
	m.details.GotoTop()
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	header := m.theme.Header.Render(fmt.Sprintf("envwatch  %d environment(s)", len(m.envs)))
	if m.updates != nil {
		header += m.theme.Success.Render("  ● live")
	}
	b.WriteString(header)
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.showPkgs {
		b.WriteString(m.theme.Box.Render(m.details.View()))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(m.theme.Error.Render("Error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(m.theme.Info.Render(m.status))
	case !m.lastUpdate.IsZero():
		b.WriteString(m.theme.Muted.Render("Updated " + Age(m.lastUpdate)))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
