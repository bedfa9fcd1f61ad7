// Package tabs holds the pages of the routerctl dashboard.
package tabs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/adapter/tui/theme"
	"a2a-router/internal/domain"
)

// OverviewModel shows the router's counters plus what the event stream has
// seen since the dashboard opened.
type OverviewModel struct {
	Status    gateway.StatusResponse
	HasStatus bool
	Err       string
	UpdatedAt time.Time

	// States counts request.state events per state.
	States    map[domain.RequestState]int
	Calls     int
	Failed    int
	Cancelled int

	width, height int
}

// NewOverview creates an empty overview.
func NewOverview() OverviewModel {
	return OverviewModel{States: make(map[domain.RequestState]int)}
}

// SetSize sets dimensions.
func (m *OverviewModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetSnapshot stores a status read and clears any error.
func (m *OverviewModel) SetSnapshot(st gateway.StatusResponse) {
	m.Status = st
	m.HasStatus = true
	m.Err = ""
	m.UpdatedAt = time.Now()
}

// SetError records a failed status read. The last snapshot stays visible.
func (m *OverviewModel) SetError(msg string) { m.Err = msg }

// Observe updates the live counters from one router event.
func (m *OverviewModel) Observe(ev domain.Event) {
	switch ev.Type {
	case domain.EventRequestState:
		var p struct {
			State domain.RequestState `json:"state"`
		}
		if decode(ev, &p) && p.State != "" {
			m.States[p.State]++
		}
	case domain.EventAgentCallFinished:
		m.Calls++
		var p struct {
			Failed bool `json:"failed"`
		}
		if decode(ev, &p) && p.Failed {
			m.Failed++
		}
	case domain.EventRequestCancelled:
		m.Cancelled++
	}
}

// Update is a no-op.
func (m OverviewModel) Update(_ tea.Msg) (OverviewModel, tea.Cmd) {
	return m, nil
}

// View renders the overview.
func (m OverviewModel) View() string {
	var sb strings.Builder
	if m.Err != "" {
		sb.WriteString("  " + theme.TextError.Render(theme.SymbolError+" "+m.Err) + "\n\n")
	}

	sb.WriteString(theme.Bold.Render("  Router") + "\n")
	if !m.HasStatus {
		sb.WriteString(theme.TextMuted.Render("  Waiting for the first status read...") + "\n")
		return sb.String()
	}
	st := m.Status
	uptime := time.Duration(st.Router.UptimeSeconds) * time.Second
	sb.WriteString(fmt.Sprintf("  %s %s  %s  up %s  %s\n\n",
		st.Router.Name, theme.Dim.Render(st.Router.Version), theme.TextMuted.Render(st.Router.URL),
		uptime, theme.Dim.Render("updated "+m.UpdatedAt.Format("15:04:05"))))

	sb.WriteString(theme.Bold.Render("  Requests") + "\n")
	sb.WriteString("  " + statLine(
		"Total", st.Requests.Requests,
		"Direct", st.Requests.Direct,
		"Dispatched", st.Requests.Dispatches,
		"Failed", st.Requests.Failures,
		"Cancelled", st.Requests.Cancelled,
		"In flight", st.Sessions.InFlight,
	) + "\n\n")

	sb.WriteString(theme.Bold.Render("  Agents") + "\n")
	sb.WriteString("  " + statLine(
		"Registered", st.Registry.TotalAgents,
		"Healthy", st.Registry.HealthyAgents,
		"Skills", st.Registry.DistinctSkills,
		"Calls", st.Calls.Total,
		"Call failures", st.Calls.Failures,
		"Sessions", st.Sessions.Active,
	) + "\n")
	if len(st.Breakers) > 0 {
		names := make([]string, 0, len(st.Breakers))
		for name := range st.Breakers {
			names = append(names, name)
		}
		sort.Strings(names)
		var parts []string
		for _, name := range names {
			state := st.Breakers[name]
			style := theme.TextSuccess
			if state != "closed" {
				style = theme.TextWarning
			}
			parts = append(parts, name+" "+style.Render(state))
		}
		sb.WriteString("  " + theme.TextMuted.Render("Breakers: ") + strings.Join(parts, ", ") + "\n")
	}

	sb.WriteString("\n" + theme.Bold.Render("  Live") + "\n")
	var states []string
	for _, s := range []domain.RequestState{
		domain.StateDirectHandle, domain.StateSingleDispatch, domain.StateParallelDispatch,
		domain.StateSequentialDispatch, domain.StateAggregating,
	} {
		states = append(states, theme.StateStyle(s).Render(string(s))+" "+theme.StatValue.Render(fmt.Sprint(m.States[s])))
	}
	sb.WriteString("  " + strings.Join(states, "  ") + "\n")
	sb.WriteString("  " + statLine("Agent calls", m.Calls, "Failed", m.Failed, "Cancelled", m.Cancelled) + "\n")
	return sb.String()
}

// statLine renders label/value pairs separated by bars.
func statLine(pairs ...any) string {
	sep := "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render("|") + "  "
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, theme.TextMuted.Render(fmt.Sprint(pairs[i]))+": "+theme.StatValue.Render(fmt.Sprint(pairs[i+1])))
	}
	return strings.Join(parts, sep)
}
