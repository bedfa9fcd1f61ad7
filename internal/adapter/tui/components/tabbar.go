// Package components provides the Bubble Tea sub-models shared by routerctl's
// chat and dashboard views.
package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"a2a-router/internal/adapter/tui/theme"
)

// Tab is one tab entry.
type Tab struct {
	ID    string
	Label string
	// Badge is a count of unseen items; zero hides it.
	Badge int
}

// TabBar is a horizontal tab strip. The parent model routes navigation keys.
type TabBar struct {
	Tabs      []Tab
	Active    int
	width     int
	collapsed bool
}

// NewTabBar creates a tab bar with the first tab active.
func NewTabBar(tabs []Tab) TabBar {
	return TabBar{Tabs: tabs}
}

// SetWidth updates the width. Narrow terminals show only the active tab.
func (m *TabBar) SetWidth(w int) {
	m.width = w
	m.collapsed = w < theme.MinTabWidth
}

// Next advances to the next tab, wrapping around.
func (m *TabBar) Next() {
	if len(m.Tabs) > 0 {
		m.Active = (m.Active + 1) % len(m.Tabs)
	}
}

// Prev moves to the previous tab, wrapping around.
func (m *TabBar) Prev() {
	if len(m.Tabs) > 0 {
		m.Active = (m.Active - 1 + len(m.Tabs)) % len(m.Tabs)
	}
}

// SetActive selects a tab by index; out of range is ignored.
func (m *TabBar) SetActive(i int) {
	if i >= 0 && i < len(m.Tabs) {
		m.Active = i
	}
}

// ActiveID returns the ID of the selected tab.
func (m TabBar) ActiveID() string {
	if len(m.Tabs) == 0 {
		return ""
	}
	return m.Tabs[m.Active].ID
}

// SetBadge sets the badge count on the tab with the given ID.
func (m *TabBar) SetBadge(id string, n int) {
	for i := range m.Tabs {
		if m.Tabs[i].ID == id {
			m.Tabs[i].Badge = n
		}
	}
}

// View renders the tab bar.
func (m TabBar) View() string {
	if len(m.Tabs) == 0 {
		return ""
	}
	if m.collapsed {
		t := m.Tabs[m.Active]
		counter := theme.Dim.Render("[" + strconv.Itoa(m.Active+1) + "/" + strconv.Itoa(len(m.Tabs)) + "]")
		return lipgloss.JoinHorizontal(lipgloss.Center, theme.TabActive.Render(t.Label), " ", counter)
	}

	parts := make([]string, 0, len(m.Tabs))
	for i, t := range m.Tabs {
		label := t.Label
		if t.Badge > 0 {
			label += " " + theme.TextWarning.Render(strconv.Itoa(t.Badge))
		}
		if i == m.Active {
			parts = append(parts, theme.TabActive.Render(label))
		} else {
			parts = append(parts, theme.TabNormal.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Center, parts...)
	if remaining := m.width - lipgloss.Width(bar); m.width > 0 && remaining > 0 {
		bar += theme.TabNormal.UnsetPadding().Render(strings.Repeat(" ", remaining))
	}
	return bar
}
