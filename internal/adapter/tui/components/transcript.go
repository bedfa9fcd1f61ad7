package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"a2a-router/internal/adapter/tui/theme"
	"a2a-router/internal/domain"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleRouter Role = "router"
	RoleSystem Role = "system"
	RoleError  Role = "error"
)

// Entry is one line of conversation in the transcript.
type Entry struct {
	Role      Role
	Content   string
	Timestamp time.Time
	// Route is the state path of a router reply.
	Route []domain.RequestState
	// Responses are the per-skill answers the reply was built from.
	Responses []domain.SkillResponse
	Elapsed   time.Duration

	rendered string
}

// Transcript is a scrolling conversation view. It follows new entries while
// the user is at the bottom and stops following once they scroll up.
type Transcript struct {
	Viewport   viewport.Model
	entries    []Entry
	maxEntries int
	trimmed    int
	width      int
	md         *glamour.TermRenderer
	ready      bool
	atBottom   bool
}

// NewTranscript creates an empty transcript. The viewport is sized lazily.
func NewTranscript(maxEntries int) Transcript {
	return Transcript{maxEntries: maxEntries, atBottom: true}
}

// SetSize resizes the viewport and invalidates cached markdown.
func (t *Transcript) SetSize(w, h int) {
	if w != t.width {
		t.width = w
		t.md = nil
		for i := range t.entries {
			t.entries[i].rendered = ""
		}
	}
	if !t.ready {
		t.Viewport = viewport.New(w, h)
		t.Viewport.MouseWheelEnabled = true
		t.Viewport.MouseWheelDelta = 3
		t.ready = true
	} else {
		t.Viewport.Width = w
		t.Viewport.Height = h
	}
	t.refresh()
}

// Add appends an entry, trimming the oldest past the cap.
func (t *Transcript) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	t.entries = append(t.entries, e)
	if t.maxEntries > 0 && len(t.entries) > t.maxEntries {
		excess := len(t.entries) - t.maxEntries
		t.entries = t.entries[excess:]
		t.trimmed += excess
	}
	t.refresh()
	if t.atBottom {
		t.Viewport.GotoBottom()
	}
}

// UpdateLast replaces the content of the newest entry, for progressive
// rendering of a reply.
func (t *Transcript) UpdateLast(content string) {
	if len(t.entries) == 0 {
		return
	}
	last := &t.entries[len(t.entries)-1]
	last.Content = content
	last.rendered = ""
	t.refresh()
	if t.atBottom {
		t.Viewport.GotoBottom()
	}
}

// Clear drops every entry.
func (t *Transcript) Clear() {
	t.entries = nil
	t.trimmed = 0
	t.atBottom = true
	t.refresh()
	t.Viewport.GotoTop()
}

// Entries returns the retained entries, oldest first.
func (t Transcript) Entries() []Entry { return t.entries }

// Update handles scrolling.
func (t Transcript) Update(msg tea.Msg) (Transcript, tea.Cmd) {
	if !t.ready {
		return t, nil
	}
	var cmd tea.Cmd
	t.Viewport, cmd = t.Viewport.Update(msg)
	t.atBottom = t.Viewport.AtBottom()
	return t, cmd
}

// View renders the viewport.
func (t Transcript) View() string {
	if !t.ready {
		return "  Initializing..."
	}
	return t.Viewport.View()
}

func (t *Transcript) refresh() {
	if !t.ready {
		return
	}
	t.Viewport.SetContent(t.Render())
}

// Render returns the full transcript text without the viewport frame.
func (t *Transcript) Render() string {
	if len(t.entries) == 0 {
		return theme.TextMuted.Render("  Ask about the weather, the TV, or both.")
	}
	width := ContentWidth(t.width)

	var sb strings.Builder
	if t.trimmed > 0 {
		sb.WriteString(theme.TextMuted.Render(fmt.Sprintf("  (%d older messages trimmed)", t.trimmed)) + "\n\n")
	}
	for i := range t.entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.renderEntry(&t.entries[i], width))
	}
	return sb.String()
}

func (t *Transcript) renderEntry(e *Entry, width int) string {
	header := roleLabel(e.Role) + " " + theme.Timestamp.Render(RelativeTime(e.Timestamp))

	var body string
	switch e.Role {
	case RoleRouter:
		if e.rendered == "" {
			e.rendered = t.markdown(e.Content, width)
		}
		body = strings.TrimSpace(e.rendered)
	case RoleError:
		body = theme.TextError.Render(wrapText(e.Content, width-2))
	default:
		body = wrapText(e.Content, width-lipgloss.Width(header)-2)
	}

	if e.Role != RoleRouter {
		return header + "  " + body
	}
	var sb strings.Builder
	sb.WriteString(header)
	if route := RouteSummary(e.Route, e.Elapsed); route != "" {
		sb.WriteString("  " + route)
	}
	sb.WriteString("\n")
	sb.WriteString(renderResponses(e.Responses, width))
	sb.WriteString(body)
	return sb.String()
}

// RouteSummary renders a state path compactly, e.g. "analyzing → single_dispatch".
// The bookend states are left out.
func RouteSummary(path []domain.RequestState, elapsed time.Duration) string {
	var parts []string
	for _, s := range path {
		if s == domain.StateReceived || s == domain.StateResponded {
			continue
		}
		parts = append(parts, theme.StateStyle(s).Render(string(s)))
	}
	out := strings.Join(parts, theme.Dim.Render(" "+theme.SymbolArrowR+" "))
	if elapsed > 0 {
		if out != "" {
			out += " "
		}
		out += theme.TextMuted.Render(elapsed.Round(time.Millisecond).String())
	}
	return out
}

// renderResponses lists the skills that contributed to a reply. A lone
// response is already the reply body, so it is not repeated.
func renderResponses(responses []domain.SkillResponse, width int) string {
	if len(responses) < 2 {
		return ""
	}
	maxName := width - 8
	if maxName < 10 {
		maxName = 10
	}
	var sb strings.Builder
	for _, r := range responses {
		icon := theme.TextSuccess.Render(theme.SymbolSuccess)
		if r.Failed {
			icon = theme.TextError.Render(theme.SymbolError)
		}
		name := r.SkillID
		if r.AgentID != "" {
			name += " @ " + r.AgentID
		}
		if len(name) > maxName {
			name = name[:maxName-1] + theme.SymbolEllipsis
		}
		sb.WriteString("  " + icon + " " + theme.AgentLabel.Render(name) + "\n")
	}
	return sb.String()
}

func roleLabel(r Role) string {
	switch r {
	case RoleUser:
		return theme.UserLabel.Render(theme.SymbolUser)
	case RoleRouter:
		return theme.RouterLabel.Render(theme.SymbolRouter)
	case RoleSystem:
		return theme.SystemLabel.Render("System")
	case RoleError:
		return theme.ErrorLabel.Render(theme.SymbolError + " Error")
	}
	return theme.TextMuted.Render(string(r))
}

func (t *Transcript) markdown(content string, width int) string {
	if t.md == nil {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err != nil {
			return "  " + content
		}
		t.md = r
	}
	out, err := t.md.Render(content)
	if err != nil {
		return "  " + content
	}
	return out
}

// RelativeTime returns a short relative time string.
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Format("Jan 2 15:04")
}

// wrapText wraps on spaces with a two-space continuation indent. Rune based
// so Korean text is never split mid-character.
func wrapText(s string, width int) string {
	if width < 20 {
		width = 20
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	var lines []string
	for len(runes) > width {
		idx := -1
		for i := width - 1; i > 0; i-- {
			if runes[i] == ' ' {
				idx = i
				break
			}
		}
		if idx <= 0 {
			idx = width
		}
		lines = append(lines, string(runes[:idx]))
		runes = runes[idx:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return strings.Join(lines, "\n  ")
}

// ContentWidth clamps a terminal width to the readable body width.
func ContentWidth(termWidth int) int {
	w := termWidth - 4
	if w > theme.MaxContentWidth {
		w = theme.MaxContentWidth
	}
	if w < 40 {
		w = 40
	}
	return w
}

// Divider renders a horizontal rule.
func Divider(width int) string {
	return lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("─", width))
}
