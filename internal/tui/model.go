// Package tui renders the leaderboard screen in the terminal. One screen,
// two scopes: the whole city or the device's own area. Entries come from a
// Provider so tests can drive the screen with canned data.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sweeply/tidyboard/internal/domain/types"
)

// fetchTimeout bounds how long a single refresh may block.
const fetchTimeout = 15 * time.Second

// Model is the leaderboard screen state.
type Model struct {
	provider Provider
	area     string
	limit    int

	scope   types.Scope
	entries []types.Entry
	loading bool
	err     error

	keys   keyMap
	width  int
	height int
}

// fetchDoneMsg carries the result of a leaderboard fetch. The scope tags
// which board the result belongs to so a stale response cannot clobber a
// newer scope selection.
type fetchDoneMsg struct {
	scope   types.Scope
	entries []types.Entry
	err     error
}

// New creates the screen. Scope always starts at city; it is not persisted
// across runs.
func New(provider Provider, area string, limit int) Model {
	return Model{
		provider: provider,
		area:     area,
		limit:    limit,
		scope:    types.ScopeCity,
		loading:  true,
		keys:     newKeyMap(),
	}
}

// Init kicks off the first fetch for the city board.
func (m Model) Init() tea.Cmd {
	return fetchCmd(m.provider, m.scope, m.area, m.limit)
}

// Update handles key presses and fetch results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchDoneMsg:
		if msg.scope != m.scope {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.entries = msg.entries
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left", "h":
			return m.setScope(types.ScopeCity)
		case "right", "l":
			return m.setScope(types.ScopeArea)
		case "tab":
			if m.scope == types.ScopeCity {
				return m.setScope(types.ScopeArea)
			}
			return m.setScope(types.ScopeCity)
		case "r":
			m.loading = true
			m.err = nil
			return m, fetchCmd(m.provider, m.scope, m.area, m.limit)
		}
		return m, nil
	}

	return m, nil
}

// setScope switches the active scope and requests that scope's entries.
// Selecting the scope that is already active does nothing.
func (m Model) setScope(scope types.Scope) (tea.Model, tea.Cmd) {
	if m.scope == scope {
		return m, nil
	}
	m.scope = scope
	m.loading = true
	m.err = nil
	return m, fetchCmd(m.provider, scope, m.area, m.limit)
}

func fetchCmd(p Provider, scope types.Scope, area string, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		entries, err := p.Fetch(ctx, scope, area, limit)
		return fetchDoneMsg{scope: scope, entries: entries, err: err}
	}
}
