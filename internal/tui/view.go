package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/sweeply/tidyboard/internal/domain/types"
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	statusStyle     = lipgloss.NewStyle().Foreground(colorOverlay0)
	errorStyle      = lipgloss.NewStyle().Foreground(colorError)
	chipActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(colorFocus)
	chipStyle       = lipgloss.NewStyle().Foreground(colorSubtext0)
	headerStyle     = lipgloss.NewStyle().Foreground(colorOverlay0)
	leaderStyle     = lipgloss.NewStyle().Foreground(colorLeader)
	pointsStyle     = lipgloss.NewStyle().Foreground(colorPrimary)
	emptyTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	emptyHintStyle  = lipgloss.NewStyle().Foreground(colorSubtext0)
	footerStyle     = lipgloss.NewStyle().Foreground(colorSubtext0)
)

// View renders the whole screen: title, scope chips, one body branch
// (loading, error, empty, or rows), and the key help footer.
func (m Model) View() string {
	var body string
	switch {
	case m.loading:
		body = statusStyle.Render("Fetching rankings...")
	case m.err != nil:
		body = errorStyle.Render("Error: " + m.err.Error())
	case len(m.entries) == 0:
		body = renderEmpty()
	default:
		body = renderRows(m.entries, m.contentWidth())
	}

	return titleStyle.Render("Leaderboard") + "\n" +
		m.renderChips() + "\n\n" +
		body + "\n\n" +
		footerStyle.Render(renderHelp(m.keys.ShortHelp()))
}

func (m Model) renderChips() string {
	return chip("City", m.scope == types.ScopeCity) + "  " + chip("My Area", m.scope == types.ScopeArea)
}

func chip(label string, active bool) string {
	if active {
		return chipActiveStyle.Render("● " + label)
	}
	return chipStyle.Render("○ " + label)
}

func renderEmpty() string {
	return "🏆\n" +
		emptyTitleStyle.Render("No rankings yet") + "\n" +
		emptyHintStyle.Render("Submit a waste report to claim the first spot.")
}

// renderRows draws one line per entry in the exact order received. The
// leading column is the 1-based display position, not the tie-aware rank
// the API reports.
func renderRows(entries []types.Entry, width int) string {
	posWidth := 4
	reportsWidth := 8
	pointsWidth := 10
	deviceWidth := width - posWidth - reportsWidth - pointsWidth - 8
	if deviceWidth < 10 {
		deviceWidth = 10
	}
	if deviceWidth > 40 {
		deviceWidth = 40
	}

	header := fmt.Sprintf("  %-*s  %-*s  %*s  %*s", posWidth, "#", deviceWidth, "Device", reportsWidth, "Reports", pointsWidth, "Points")
	lines := []string{headerStyle.Render(header)}
	for i, e := range entries {
		posField := padRight(fmt.Sprintf("%d.", i+1), posWidth)
		if i == 0 {
			posField = leaderStyle.Render(posField)
		}
		deviceField := padRight(truncate(e.DeviceID, deviceWidth), deviceWidth)
		reportsField := fmt.Sprintf("%*d", reportsWidth, e.Reports)
		pointsField := pointsStyle.Render(fmt.Sprintf("%*.1f", pointsWidth, e.Points))
		lines = append(lines, "  "+posField+"  "+deviceField+"  "+reportsField+"  "+pointsField)
	}
	return strings.Join(lines, "\n")
}

func (m Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	return m.width
}

func renderHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		if help.Key == "" && help.Desc == "" {
			continue
		}
		parts = append(parts, boldKey(help.Key)+" "+help.Desc)
	}
	return strings.Join(parts, "  ")
}

func boldKey(text string) string {
	if text == "" {
		return ""
	}
	return "\x1b[1m" + text + "\x1b[22m"
}

func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
