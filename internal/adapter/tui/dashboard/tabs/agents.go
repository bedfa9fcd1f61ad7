package tabs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"a2a-router/internal/adapter/tui/theme"
	"a2a-router/internal/domain"
)

// AgentsModel lists the registered agents and their skills.
type AgentsModel struct {
	Viewport viewport.Model
	agents   []domain.AgentDescriptor
	ready    bool
	width    int
}

// NewAgents creates an empty agent table.
func NewAgents() AgentsModel {
	return AgentsModel{}
}

// SetSize sets dimensions.
func (m *AgentsModel) SetSize(w, h int) {
	m.width = w
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// SetAgents replaces the table contents, sorted by name.
func (m *AgentsModel) SetAgents(agents []domain.AgentDescriptor) {
	m.agents = append(m.agents[:0], agents...)
	sort.Slice(m.agents, func(i, j int) bool { return m.agents[i].Name < m.agents[j].Name })
	m.refresh()
}

// Count returns the number of listed agents.
func (m AgentsModel) Count() int { return len(m.agents) }

// Update scrolls the table.
func (m AgentsModel) Update(msg tea.Msg) (AgentsModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the table.
func (m AgentsModel) View() string {
	if !m.ready {
		return ""
	}
	return m.Viewport.View()
}

func (m *AgentsModel) refresh() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(RenderAgents(m.agents, m.width))
}

// RenderAgents formats agents as a table with one skill line per skill.
func RenderAgents(agents []domain.AgentDescriptor, width int) string {
	if len(agents) == 0 {
		return theme.TextMuted.Render("  No agents registered")
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %-20s %-28s %-8s %s\n", "NAME", "URL", "HEALTH", "SKILLS"))
	sb.WriteString("  " + theme.Dim.Render(strings.Repeat("─", max(width-4, 10))) + "\n")
	for _, a := range agents {
		health := theme.TextSuccess.Render(fmt.Sprintf("%-8s", "up"))
		if !a.Healthy {
			health = theme.TextError.Render(fmt.Sprintf("%-8s", "down"))
		}
		sb.WriteString(fmt.Sprintf("  %-20s %-28s %s %s\n", a.Name, a.Address, health, strings.Join(a.SkillIDs(), ", ")))
		for _, s := range a.Skills {
			line := s.ID
			if s.DomainCategory != "" {
				line += " (" + s.DomainCategory + ")"
			}
			if len(s.Keywords) > 0 {
				line += " " + theme.Dim.Render(strings.Join(s.Keywords, " "))
			}
			sb.WriteString("    " + theme.SymbolBullet + " " + line + "\n")
		}
	}
	return sb.String()
}
