// Package envlist is the interactive environment browser behind 'envwatch tui'.
package envlist

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/envwatch/pkg/daemon"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/grovetools/envwatch/tui/theme"
)

type listMsg struct {
	envs []envs.Environment
	err  error
}

type refreshMsg struct {
	result *daemon.RefreshResult
	err    error
}

type streamMsg struct {
	updates <-chan daemon.StateUpdate
	err     error
}

type updateMsg struct {
	update daemon.StateUpdate
	ok     bool
}

// Model is the bubbletea model of the environment list.
type Model struct {
	client daemon.Client
	ctx    context.Context
	theme  *theme.Theme
	keys   KeyMap

	table    table.Model
	details  viewport.Model
	help     help.Model
	envs     []envs.Environment
	updates  <-chan daemon.StateUpdate
	showPkgs bool

	status     string
	err        error
	lastUpdate time.Time
	width      int
	height     int
}

// New creates a Model reading from client. ctx bounds every request and the
// update stream.
func New(ctx context.Context, client daemon.Client, t *theme.Theme) Model {
	if t == nil {
		t = theme.DefaultTheme
	}

	tbl := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = t.TableHeader
	styles.Selected = t.Selected
	tbl.SetStyles(styles)

	return Model{
		client:  client,
		ctx:     ctx,
		theme:   t,
		keys:    DefaultKeyMap(),
		table:   tbl,
		details: viewport.New(80, 8),
		help:    help.New(),
		status:  "Loading environments...",
	}
}

// Init loads the inventory and subscribes to daemon updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.subscribe())
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		list, err := m.client.List(m.ctx)
		return listMsg{envs: list, err: err}
	}
}

func (m Model) subscribe() tea.Cmd {
	if !m.client.IsRunning() {
		return nil
	}
	return func() tea.Msg {
		updates, err := m.client.Stream(m.ctx)
		return streamMsg{updates: updates, err: err}
	}
}

func waitForUpdate(updates <-chan daemon.StateUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		return updateMsg{update: u, ok: ok}
	}
}

func (m Model) refresh(names []string, force bool) tea.Cmd {
	return func() tea.Msg {
		result, err := m.client.Refresh(m.ctx, names, force)
		return refreshMsg{result: result, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case listMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.setEnvironments(msg.envs)
		m.status = ""
		m.lastUpdate = time.Now()
		return m, nil

	case streamMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.updates = msg.updates
		return m, waitForUpdate(m.updates)

	case updateMsg:
		if !msg.ok {
			m.status = "Daemon stream closed"
			m.updates = nil
			return m, nil
		}
		m.apply(msg.update)
		return m, waitForUpdate(m.updates)

	case refreshMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = refreshStatus(msg.result)
		// Without a stream the inventory has to be re-read.
		if m.updates == nil {
			return m, m.load()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Details):
			m.showPkgs = !m.showPkgs
			m.resize()
			m.updateDetails()
			return m, nil
		case key.Matches(msg, m.keys.Refresh), key.Matches(msg, m.keys.ForceRefresh):
			name, ok := m.selected()
			if !ok {
				return m, nil
			}
			force := key.Matches(msg, m.keys.ForceRefresh)
			m.status = "Refreshing " + name + "..."
			return m, m.refresh([]string{name}, force)
		case key.Matches(msg, m.keys.RefreshAll):
			m.status = "Refreshing all environments..."
			return m, m.refresh(nil, false)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	m.updateDetails()
	return m, cmd
}

// apply merges a daemon update into the inventory.
func (m *Model) apply(u daemon.StateUpdate) {
	if u.Type == "initial" {
		m.setEnvironments(u.Environments)
		m.lastUpdate = u.At
		return
	}

	byName := make(map[string]envs.Environment, len(m.envs))
	for _, env := range m.envs {
		byName[env.Name] = env
	}
	for _, env := range u.Environments {
		byName[env.Name] = env
	}
	if u.Report != nil {
		for _, name := range u.Report.Removed {
			delete(byName, name)
		}
	}

	list := make([]envs.Environment, 0, len(byName))
	for _, env := range byName {
		list = append(list, env)
	}
	m.setEnvironments(list)
	m.lastUpdate = u.At
}

func (m *Model) setEnvironments(list []envs.Environment) {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	m.envs = list
	rows := make([]table.Row, len(list))
	for i, env := range list {
		rows[i] = row(env)
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
	m.updateDetails()
}

func (m Model) selected() (string, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.envs) {
		return "", false
	}
	return m.envs[idx].Name, true
}

func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	m.table.SetColumns(columns(m.width))
	m.help.Width = m.width

	// Header, status and help lines.
	avail := m.height - 6
	if m.showPkgs {
		detailHeight := avail / 3
		m.details.Width = m.width
		m.details.Height = detailHeight
		avail -= detailHeight + 1
	}
	if avail < 3 {
		avail = 3
	}
	m.table.SetHeight(avail)
}
