package components

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"a2a-router/internal/adapter/tui/theme"
	"a2a-router/internal/domain"
)

const maxEventEntries = 500

// EventStream is a scrolling log of router events, capped at the most
// recent entries.
type EventStream struct {
	Viewport viewport.Model
	events   []domain.Event
	filter   string
	ready    bool
	atBottom bool
}

// NewEventStream creates an empty event log.
func NewEventStream() EventStream {
	return EventStream{atBottom: true}
}

// SetSize sets the viewport dimensions.
func (m *EventStream) SetSize(w, h int) {
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// SetFilter limits the view to event types with the given prefix, such as
// "request." or "agent.". Empty shows everything.
func (m *EventStream) SetFilter(prefix string) {
	m.filter = prefix
	m.refresh()
}

// Filter returns the active type prefix.
func (m EventStream) Filter() string { return m.filter }

// Add appends an event.
func (m *EventStream) Add(ev domain.Event) {
	m.events = append(m.events, ev)
	if len(m.events) > maxEventEntries {
		m.events = m.events[len(m.events)-maxEventEntries:]
	}
	m.refresh()
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}

// Count returns how many events are retained.
func (m EventStream) Count() int { return len(m.events) }

// Visible returns the retained events that pass the filter.
func (m EventStream) Visible() []domain.Event {
	if m.filter == "" {
		return m.events
	}
	var out []domain.Event
	for _, ev := range m.events {
		if strings.HasPrefix(string(ev.Type), m.filter) {
			out = append(out, ev)
		}
	}
	return out
}

// Update handles scrolling.
func (m EventStream) Update(msg tea.Msg) (EventStream, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the log.
func (m EventStream) View() string {
	if !m.ready {
		return ""
	}
	return m.Viewport.View()
}

func (m *EventStream) refresh() {
	if !m.ready {
		return
	}
	visible := m.Visible()
	if len(visible) == 0 {
		m.Viewport.SetContent(theme.TextMuted.Render("  Waiting for events..."))
		return
	}
	var sb strings.Builder
	for _, ev := range visible {
		sb.WriteString(FormatEvent(ev) + "\n")
	}
	m.Viewport.SetContent(sb.String())
}

// FormatEvent renders one event as a colored log line.
func FormatEvent(ev domain.Event) string {
	typ := fmt.Sprintf("%-20s", ev.Type)
	switch ev.Type {
	case domain.EventRequestReceived, domain.EventRequestResponded:
		typ = theme.TextInfo.Render(typ)
	case domain.EventRequestState:
		typ = theme.TextAccent.Render(typ)
	case domain.EventRequestCancelled:
		typ = theme.TextWarning.Render(typ)
	case domain.EventAgentRegistered:
		typ = theme.TextSuccess.Render(typ)
	case domain.EventAgentCallFinished:
		typ = theme.AgentLabel.Render(typ)
		if failedCall(ev) {
			typ = theme.TextError.Render(fmt.Sprintf("%-20s", ev.Type))
		}
	default:
		typ = theme.TextMuted.Render(typ)
	}
	line := "  " + theme.Dim.Render(ev.Timestamp.Format("15:04:05")) + "  " + typ
	if summary := EventSummary(ev); summary != "" {
		line += " " + summary
	}
	return line
}

// EventSummary extracts the interesting payload fields of a router event.
func EventSummary(ev domain.Event) string {
	var p map[string]any
	if len(ev.Payload) == 0 || json.Unmarshal(ev.Payload, &p) != nil {
		return session(ev)
	}
	var parts []string
	add := func(key string) {
		if v, ok := p[key]; ok && v != nil && v != "" {
			parts = append(parts, key+"="+fmt.Sprint(v))
		}
	}
	switch ev.Type {
	case domain.EventRequestReceived:
		add("request_id")
		if text, ok := p["text"].(string); ok {
			parts = append(parts, fmt.Sprintf("%q", truncate(text, 40)))
		}
	case domain.EventRequestState:
		add("request_id")
		if s, ok := p["state"].(string); ok {
			parts = append(parts, theme.StateStyle(domain.RequestState(s)).Render(s))
		}
	case domain.EventRequestResponded, domain.EventRequestCancelled:
		add("request_id")
	case domain.EventAgentRegistered:
		add("name")
		add("url")
		add("skills")
	case domain.EventAgentCallFinished:
		add("skill")
		add("agent_id")
		if ms, ok := p["duration_ms"].(float64); ok {
			parts = append(parts, fmt.Sprintf("%dms", int64(ms)))
		}
	default:
		for _, k := range []string{"request_id", "max_age"} {
			add(k)
		}
	}
	if s := session(ev); s != "" {
		parts = append(parts, s)
	}
	return theme.TextMuted.Render(strings.Join(parts, " "))
}

func session(ev domain.Event) string {
	if ev.SessionID == "" {
		return ""
	}
	return "session=" + ev.SessionID
}

func failedCall(ev domain.Event) bool {
	var p struct {
		Failed bool `json:"failed"`
	}
	return json.Unmarshal(ev.Payload, &p) == nil && p.Failed
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + theme.SymbolEllipsis
}
