package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"a2a-router/internal/adapter/tui/theme"
)

// SubmitMsg carries the text entered when the user presses Enter.
type SubmitMsg struct {
	Value string
}

// Command is a slash command offered for completion.
type Command struct {
	Name        string
	Description string
}

// ParseCommand splits "/name args..." into its parts.
func ParseCommand(input string) (name string, args []string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	parts := strings.Fields(input)
	return strings.ToLower(parts[0]), parts[1:], true
}

// Input is the message editor. Typing "/" opens a completion list of the
// configured commands.
type Input struct {
	Textarea textarea.Model
	Enabled  bool

	commands []Command
	matches  []Command
	selected int
	width    int
}

const maxCompletions = 6

// NewInput creates a focused editor offering the given commands.
func NewInput(commands []Command) Input {
	ta := textarea.New()
	ta.Placeholder = "Ask the router..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(2)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = theme.InputPrompt
	ta.FocusedStyle.Placeholder = theme.InputPlaceholder
	ta.Focus()
	return Input{Textarea: ta, Enabled: true, commands: commands}
}

// SetWidth resizes the editor.
func (m *Input) SetWidth(w int) {
	m.width = w
	m.Textarea.SetWidth(w - 2)
}

// SetEnabled toggles focus. A disabled editor ignores keys.
func (m *Input) SetEnabled(enabled bool) {
	m.Enabled = enabled
	if enabled {
		m.Textarea.Focus()
	} else {
		m.Textarea.Blur()
	}
}

// Value returns the current text.
func (m Input) Value() string { return m.Textarea.Value() }

// Completing reports whether the completion list is open.
func (m Input) Completing() bool { return len(m.matches) > 0 }

// Height is the number of lines View occupies.
func (m Input) Height() int {
	h := m.Textarea.Height()
	if n := len(m.matches); n > 0 {
		h += min(n, maxCompletions) + 2
	}
	return h
}

// Update edits text. Enter submits unless the completion list is open, in
// which case it accepts the selected command.
func (m Input) Update(msg tea.Msg) (Input, tea.Cmd) {
	if !m.Enabled {
		return m, nil
	}
	if _, ok := msg.(tea.MouseMsg); ok {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		if len(m.matches) > 0 {
			switch key.Type {
			case tea.KeyTab, tea.KeyDown:
				m.selected = (m.selected + 1) % len(m.matches)
				return m, nil
			case tea.KeyShiftTab, tea.KeyUp:
				m.selected = (m.selected - 1 + len(m.matches)) % len(m.matches)
				return m, nil
			case tea.KeyEnter:
				m.Textarea.SetValue(m.matches[m.selected].Name + " ")
				m.Textarea.CursorEnd()
				m.closeCompletion()
				return m, nil
			case tea.KeyEsc:
				m.closeCompletion()
				return m, nil
			}
		}
		if key.Type == tea.KeyEnter {
			value := strings.TrimSpace(m.Textarea.Value())
			if value == "" {
				return m, nil
			}
			m.Textarea.Reset()
			m.closeCompletion()
			return m, func() tea.Msg { return SubmitMsg{Value: value} }
		}
	}

	var cmd tea.Cmd
	m.Textarea, cmd = m.Textarea.Update(msg)
	m.complete(m.Textarea.Value())
	return m, cmd
}

func (m *Input) complete(value string) {
	if !strings.HasPrefix(value, "/") || strings.Contains(value, " ") {
		m.closeCompletion()
		return
	}
	prefix := strings.ToLower(value)
	m.matches = m.matches[:0]
	for _, c := range m.commands {
		if strings.HasPrefix(c.Name, prefix) {
			m.matches = append(m.matches, c)
		}
	}
	if m.selected >= len(m.matches) {
		m.selected = 0
	}
}

func (m *Input) closeCompletion() {
	m.matches = nil
	m.selected = 0
}

// View renders the completion list above the editor.
func (m Input) View() string {
	if len(m.matches) == 0 {
		return m.Textarea.View()
	}
	return m.completionView() + "\n" + m.Textarea.View()
}

func (m Input) completionView() string {
	width := max(m.width-4, 30)
	show := m.matches
	if len(show) > maxCompletions {
		show = show[:maxCompletions]
	}
	lines := make([]string, 0, len(show))
	for i, c := range show {
		name := c.Name + strings.Repeat(" ", max(0, 10-len(c.Name)))
		desc := c.Description
		if limit := width - 16; limit > 0 && len(desc) > limit {
			desc = desc[:limit-1] + theme.SymbolEllipsis
		}
		prefix := "  "
		if i == m.selected {
			prefix = theme.TextInfo.Render(theme.SymbolArrowR + " ")
		}
		lines = append(lines, prefix+name+" "+theme.TextMuted.Render(desc))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorInfo).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}
