package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"a2a-router/internal/adapter/tui/theme"
)

// KeyHint is one keybinding shown in the status bar.
type KeyHint struct {
	Key  string
	Desc string
}

// StatusBar renders key hints on the left and router info on the right.
type StatusBar struct {
	Hints  []KeyHint
	Router string
	Agents int
	// Activity is transient status text such as the current request state.
	Activity string
	width    int
}

// SetWidth updates the available width.
func (m *StatusBar) SetWidth(w int) { m.width = w }

// View renders the bar as a single line.
func (m StatusBar) View() string {
	hints := make([]string, 0, len(m.Hints))
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var info []string
	if m.Router != "" {
		info = append(info, m.Router)
	}
	if m.Agents > 0 {
		label := " agents"
		if m.Agents == 1 {
			label = " agent"
		}
		info = append(info, strconv.Itoa(m.Agents)+label)
	}
	right := theme.TextMuted.Render(strings.Join(info, " "+theme.SymbolBullet+" "))
	if m.Activity != "" {
		if right != "" {
			right += "  "
		}
		right += theme.TextInfo.Render(m.Activity)
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
