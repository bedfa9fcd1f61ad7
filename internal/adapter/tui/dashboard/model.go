package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/adapter/tui/components"
	"a2a-router/internal/adapter/tui/dashboard/tabs"
	"a2a-router/internal/adapter/tui/uxerror"
	"a2a-router/internal/domain"
)

var _ tea.Model = (*Model)(nil)

// Tab identifies a dashboard page.
type Tab int

const (
	TabOverview Tab = iota
	TabAgents
	TabEvents
)

// Source reads router state over HTTP.
type Source interface {
	Status(ctx context.Context) (gateway.StatusResponse, error)
	Agents(ctx context.Context) (gateway.AgentsResponse, error)
}

// Deps are the collaborators of the dashboard.
type Deps struct {
	Source Source
	// Events is the router's live event stream; nil leaves the events tab empty.
	Events    <-chan domain.Event
	RouterURL string
	// Refresh is the snapshot interval; zero means five seconds.
	Refresh time.Duration
}

// Model is the root Bubble Tea model of the dashboard.
type Model struct {
	deps Deps

	activeTab Tab
	tabBar    components.TabBar
	statusBar components.StatusBar

	overview tabs.OverviewModel
	agents   tabs.AgentsModel
	events   tabs.EventsModel

	width, height int
}

// New creates the dashboard model.
func New(deps Deps) *Model {
	if deps.Refresh <= 0 {
		deps.Refresh = 5 * time.Second
	}
	return &Model{
		deps: deps,
		tabBar: components.NewTabBar([]components.Tab{
			{ID: "overview", Label: "Overview"},
			{ID: "agents", Label: "Agents"},
			{ID: "events", Label: "Events"},
		}),
		statusBar: components.StatusBar{
			Router: deps.RouterURL,
			Hints: []components.KeyHint{
				{Key: "Tab", Desc: "Switch"},
				{Key: "1-3", Desc: "Jump"},
				{Key: "r", Desc: "Refresh"},
				{Key: "q", Desc: "Quit"},
			},
		},
		overview: tabs.NewOverview(),
		agents:   tabs.NewAgents(),
		events:   tabs.NewEvents(),
	}
}

// Init fetches the first snapshot and starts the event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(snapshotCmd(m.deps.Source), waitForEvent(m.deps.Events))
}

// ActiveTab returns the selected page.
func (m *Model) ActiveTab() Tab { return m.activeTab }

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyTab:
			m.setTab((m.activeTab + 1) % 3)
			return m, nil
		case tea.KeyShiftTab:
			m.setTab((m.activeTab + 2) % 3)
			return m, nil
		case tea.KeyRunes:
			switch string(msg.Runes) {
			case "1":
				m.setTab(TabOverview)
				return m, nil
			case "2":
				m.setTab(TabAgents)
				return m, nil
			case "3":
				m.setTab(TabEvents)
				return m, nil
			case "r":
				return m, snapshotCmd(m.deps.Source)
			case "q":
				return m, tea.Quit
			}
		}

	case SnapshotMsg:
		if msg.Err != nil {
			m.overview.SetError(uxerror.Humanize(msg.Err).Title)
		} else {
			m.overview.SetSnapshot(msg.Status)
			m.agents.SetAgents(msg.Agents.Agents)
			m.statusBar.Agents = msg.Agents.Count
		}
		return m, refreshAfter(m.deps.Refresh)

	case refreshMsg:
		return m, snapshotCmd(m.deps.Source)

	case EventMsg:
		return m, tea.Batch(m.handleEvent(msg.Event), waitForEvent(m.deps.Events))
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabOverview:
		m.overview, cmd = m.overview.Update(msg)
	case TabAgents:
		m.agents, cmd = m.agents.Update(msg)
	case TabEvents:
		m.events, cmd = m.events.Update(msg)
	}
	return m, cmd
}

// View renders the dashboard.
func (m *Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}
	var content string
	switch m.activeTab {
	case TabOverview:
		content = m.overview.View()
	case TabAgents:
		content = m.agents.View()
	case TabEvents:
		content = m.events.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.tabBar.View(), content, m.statusBar.View())
}

func (m *Model) layout() {
	const tabH, footerH = 1, 1
	contentH := max(m.height-tabH-footerH, 5)
	m.tabBar.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
	m.overview.SetSize(m.width, contentH)
	m.agents.SetSize(m.width, contentH)
	m.events.SetSize(m.width, contentH)
}

func (m *Model) setTab(tab Tab) {
	m.activeTab = tab
	m.tabBar.SetActive(int(tab))
	if tab == TabEvents {
		m.events.MarkSeen()
		m.tabBar.SetBadge("events", 0)
	}
}

// handleEvent feeds the event log and the live counters. A new registration
// refreshes the inventory right away.
func (m *Model) handleEvent(ev domain.Event) tea.Cmd {
	m.events.Add(ev)
	m.overview.Observe(ev)
	if m.activeTab == TabEvents {
		m.events.MarkSeen()
	} else {
		m.tabBar.SetBadge("events", m.events.Unseen())
	}
	if ev.Type == domain.EventAgentRegistered {
		return snapshotCmd(m.deps.Source)
	}
	return nil
}
