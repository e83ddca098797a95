// Package table renders static styled tables for command output.
package table

import (
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/envwatch/tui/theme"
)

// CellStyleFunc styles one data cell. row is zero-based over data rows.
type CellStyleFunc func(row, col int, base lipgloss.Style) lipgloss.Style

// Builder accumulates table settings.
type Builder struct {
	theme     *theme.Theme
	headers   []string
	rows      [][]string
	width     int
	bordered  bool
	cellStyle CellStyleFunc
}

// NewBuilder creates a bordered table using the default theme.
func NewBuilder() *Builder {
	return &Builder{theme: theme.DefaultTheme, bordered: true}
}

// WithTheme sets the theme.
func (b *Builder) WithTheme(t *theme.Theme) *Builder {
	b.theme = t
	return b
}

// WithBorder toggles the outer border.
func (b *Builder) WithBorder(bordered bool) *Builder {
	b.bordered = bordered
	return b
}

// WithHeaders sets the header row.
func (b *Builder) WithHeaders(headers ...string) *Builder {
	b.headers = headers
	return b
}

// WithRows appends data rows.
func (b *Builder) WithRows(rows ...[]string) *Builder {
	b.rows = append(b.rows, rows...)
	return b
}

// WithWidth caps the rendered width. Zero leaves it unbounded.
func (b *Builder) WithWidth(width int) *Builder {
	b.width = width
	return b
}

// WithCellStyle customizes data cells, for example to color a status column.
func (b *Builder) WithCellStyle(fn CellStyleFunc) *Builder {
	b.cellStyle = fn
	return b
}

// Build returns the configured lipgloss table.
func (b *Builder) Build() *ltable.Table {
	t := b.theme
	tbl := ltable.New().
		Headers(b.headers...).
		Rows(b.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return t.TableHeader
			}
			if b.cellStyle != nil {
				return b.cellStyle(row, col, t.TableCell)
			}
			return t.TableCell
		})

	if b.bordered {
		tbl = tbl.Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border))
	} else {
		tbl = tbl.Border(lipgloss.HiddenBorder())
	}
	if b.width > 0 {
		tbl = tbl.Width(b.width)
	}
	return tbl
}

// Render builds and renders the table.
func (b *Builder) Render() string {
	return b.Build().Render()
}

// SimpleTable renders headers and rows with the default styling.
func SimpleTable(headers []string, rows [][]string) string {
	return NewBuilder().WithHeaders(headers...).WithRows(rows...).Render()
}
