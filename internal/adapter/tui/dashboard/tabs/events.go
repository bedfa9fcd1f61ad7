package tabs

import (
	"encoding/json"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"a2a-router/internal/adapter/tui/components"
	"a2a-router/internal/adapter/tui/theme"
	"a2a-router/internal/domain"
)

type eventFilter struct {
	prefix string
	label  string
}

var eventFilters = []eventFilter{
	{prefix: "", label: "All"},
	{prefix: "request.", label: "Requests"},
	{prefix: "agent.", label: "Agents"},
	{prefix: "session.", label: "Sessions"},
}

// EventsModel is the live event log. "f" cycles the type filter.
type EventsModel struct {
	Stream components.EventStream
	active int
	seen   int
	width  int
}

// NewEvents creates an events tab.
func NewEvents() EventsModel {
	return EventsModel{Stream: components.NewEventStream()}
}

// SetSize sets dimensions; one line is kept for the filter bar.
func (m *EventsModel) SetSize(w, h int) {
	m.width = w
	m.Stream.SetSize(w, h-1)
}

// Add appends an event.
func (m *EventsModel) Add(ev domain.Event) {
	m.Stream.Add(ev)
}

// Unseen counts events added since MarkSeen.
func (m EventsModel) Unseen() int { return m.Stream.Count() - m.seen }

// MarkSeen clears the unseen count.
func (m *EventsModel) MarkSeen() { m.seen = m.Stream.Count() }

// Update handles filter keys and scrolling.
func (m EventsModel) Update(msg tea.Msg) (EventsModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyRunes && string(key.Runes) == "f" {
		m.active = (m.active + 1) % len(eventFilters)
		m.Stream.SetFilter(eventFilters[m.active].prefix)
		return m, nil
	}
	var cmd tea.Cmd
	m.Stream, cmd = m.Stream.Update(msg)
	return m, cmd
}

// View renders the filter bar above the log.
func (m EventsModel) View() string {
	return m.filterBar() + "\n" + m.Stream.View()
}

func (m EventsModel) filterBar() string {
	bar := " " + theme.StatusKey.Render("f")
	for i, f := range eventFilters {
		label := f.label
		if i == m.active {
			bar += " " + theme.TextInfo.Render(label)
		} else {
			bar += " " + theme.TextMuted.Render(label)
		}
	}
	visible := strconv.Itoa(len(m.Stream.Visible())) + "/" + strconv.Itoa(m.Stream.Count())
	return bar + "  " + theme.Dim.Render(visible)
}

func decode(ev domain.Event, v any) bool {
	return len(ev.Payload) > 0 && json.Unmarshal(ev.Payload, v) == nil
}
