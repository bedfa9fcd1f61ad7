package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/oklog/ulid/v2"

	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/adapter/tui/components"
	"a2a-router/internal/adapter/tui/theme"
	"a2a-router/internal/adapter/tui/uxerror"
	"a2a-router/internal/domain"
)

// Backend is the router connection a conversation runs over.
type Backend interface {
	Chat(ctx context.Context, requestID, text string) (domain.Reply, error)
	Cancel(ctx context.Context, requestID string) (bool, error)
	Events() <-chan domain.Event
}

// Directory answers inventory questions about the router.
type Directory interface {
	Agents(ctx context.Context) (gateway.AgentsResponse, error)
	Status(ctx context.Context) (gateway.StatusResponse, error)
}

// Deps are the collaborators of a Model.
type Deps struct {
	Backend   Backend
	Directory Directory
	RouterURL string
	Speed     StreamSpeed
	Logger    *slog.Logger
	// NewRequestID defaults to a ULID.
	NewRequestID func() string
}

var slashCommands = []components.Command{
	{Name: "/help", Description: "Show commands and keys"},
	{Name: "/agents", Description: "List registered agents"},
	{Name: "/status", Description: "Show router counters"},
	{Name: "/cancel", Description: "Cancel the running request"},
	{Name: "/clear", Description: "Clear the conversation"},
	{Name: "/speed", Description: "Cycle reply speed"},
	{Name: "/quit", Description: "Exit routerctl"},
}

// Model is the root Bubble Tea model for a router conversation.
type Model struct {
	deps Deps

	transcript components.Transcript
	input      components.Input
	statusBar  components.StatusBar
	spinner    spinner.Model

	width, height int
	quitting      bool

	// gen increases with every request; replies tagged with an older gen
	// are dropped.
	gen       uint64
	requestID string
	waiting   bool
	cancelFn  context.CancelFunc

	streamCfg StreamConfig
	streaming bool
	streamBuf []rune
	streamPos int
}

// New creates the chat model.
func New(deps Deps) Model {
	if deps.NewRequestID == nil {
		deps.NewRequestID = func() string { return ulid.Make().String() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	return Model{
		deps:       deps,
		transcript: components.NewTranscript(1000),
		input:      components.NewInput(slashCommands),
		statusBar:  components.StatusBar{Hints: defaultHints(), Router: deps.RouterURL},
		spinner:    s,
		streamCfg:  StreamConfigForSpeed(deps.Speed),
	}
}

// Init starts the spinner, the event pump and the first inventory fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForEvent(m.deps.Backend.Events()),
		agentsCmd(m.deps.Directory),
	)
}

// Transcript exposes the conversation for inspection.
func (m Model) Transcript() components.Transcript { return m.transcript }

// Waiting reports whether a request is in flight.
func (m Model) Waiting() bool { return m.waiting }

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.SubmitMsg:
		return m.handleSubmit(msg.Value)

	case ReplyMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		return m.handleReply(msg)

	case StreamTickMsg:
		return m.handleStreamTick()

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, waitForEvent(m.deps.Backend.Events())

	case EventsClosedMsg:
		m.deps.Logger.Debug("router event stream closed")
		return m, nil

	case AgentsMsg:
		m.handleAgents(msg)
		return m, nil

	case StatusMsg:
		m.handleStatus(msg)
		return m, nil

	case CancelledMsg:
		if msg.Err != nil {
			m.deps.Logger.Warn("cancel failed", "request_id", msg.RequestID, "error", msg.Err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}
	inputView := m.input.View()
	if m.waiting {
		inputView = theme.Dim.Render("> waiting for the router...") + "\n" + m.spinner.View() + " " + m.statusBar.Activity
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.transcript.View(),
		components.Divider(m.width),
		inputView,
		m.statusBar.View(),
	)
}

func (m *Model) layout() {
	const dividerH, statusH = 1, 1
	contentH := max(m.height-m.input.Height()-dividerH-statusH, 5)
	m.statusBar.SetWidth(m.width)
	m.transcript.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.waiting {
			return m, m.cancelRequest("Request cancelled.")
		}
		m.quitting = true
		return m, tea.Quit
	case tea.KeyCtrlL:
		return m.handleCommand("/clear", nil)
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	if m.waiting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.width > 0 {
		m.layout()
	}
	return m, cmd
}

func (m Model) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if name, args, ok := components.ParseCommand(value); ok {
		return m.handleCommand(name, args)
	}
	if m.cancelFn != nil {
		m.cancelFn()
	}

	m.transcript.Add(components.Entry{Role: components.RoleUser, Content: value})

	m.gen++
	m.requestID = m.deps.NewRequestID()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel
	m.waiting = true
	m.streaming = false
	m.input.SetEnabled(false)
	m.statusBar.Activity = "routing..."

	return m, sendCmd(ctx, m.deps.Backend, m.requestID, value, m.gen)
}

func (m Model) handleReply(msg ReplyMsg) (tea.Model, tea.Cmd) {
	m.cancelFn = nil
	if msg.Err != nil {
		if !errors.Is(msg.Err, context.Canceled) {
			m.transcript.Add(components.Entry{Role: components.RoleError, Content: uxerror.Humanize(msg.Err).Render()})
		}
		m.finish()
		return m, nil
	}
	if msg.Reply.Cancelled {
		m.transcript.Add(components.Entry{Role: components.RoleSystem, Content: "The router cancelled the request."})
		m.finish()
		return m, nil
	}

	m.transcript.Add(components.Entry{
		Role:      components.RoleRouter,
		Route:     msg.Reply.Path,
		Responses: msg.Reply.Responses,
		Elapsed:   msg.Elapsed,
	})
	if m.streamCfg.Speed == StreamInstant {
		m.transcript.UpdateLast(msg.Reply.Text)
		m.finish()
		return m, nil
	}
	m.streamBuf = []rune(msg.Reply.Text)
	m.streamPos = 0
	m.streaming = true
	return m, streamTickCmd(m.streamCfg.TickRate)
}

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if !m.streaming {
		return m, nil
	}
	m.streamPos = min(m.streamPos+m.streamCfg.ChunkSize, len(m.streamBuf))
	m.transcript.UpdateLast(string(m.streamBuf[:m.streamPos]))
	if m.streamPos >= len(m.streamBuf) {
		m.finish()
		return m, nil
	}
	return m, streamTickCmd(m.streamCfg.TickRate)
}

// handleEvent follows the running request's state and announces new agents.
func (m *Model) handleEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventRequestState:
		var p struct {
			RequestID string `json:"request_id"`
			State     string `json:"state"`
		}
		if decodePayload(ev, &p) && m.waiting && p.RequestID == m.requestID {
			m.statusBar.Activity = theme.SymbolSpinner + " " + p.State
		}
	case domain.EventAgentRegistered:
		var p struct {
			Name     string `json:"name"`
			Replaced bool   `json:"replaced"`
		}
		if decodePayload(ev, &p) && !p.Replaced {
			m.statusBar.Agents++
			m.transcript.Add(components.Entry{
				Role:    components.RoleSystem,
				Content: fmt.Sprintf("%s Agent %s registered.", theme.SymbolInfo, p.Name),
			})
		}
	}
}

func decodePayload(ev domain.Event, v any) bool {
	return json.Unmarshal(ev.Payload, v) == nil
}

func (m *Model) handleAgents(msg AgentsMsg) {
	if msg.Err != nil {
		m.deps.Logger.Debug("agent list failed", "error", msg.Err)
		m.transcript.Add(components.Entry{Role: components.RoleError, Content: uxerror.Humanize(msg.Err).Render()})
		return
	}
	m.statusBar.Agents = msg.Agents.Count
	if len(msg.Agents.Agents) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d agents registered:", msg.Agents.Count))
	for _, a := range msg.Agents.Agents {
		health := theme.TextSuccess.Render(theme.SymbolSuccess)
		if !a.Healthy {
			health = theme.TextError.Render(theme.SymbolError)
		}
		sb.WriteString(fmt.Sprintf("\n  %s %s %s [%s]", health, a.Name, theme.Dim.Render(a.Address), strings.Join(a.SkillIDs(), ", ")))
	}
	m.transcript.Add(components.Entry{Role: components.RoleSystem, Content: sb.String()})
}

func (m *Model) handleStatus(msg StatusMsg) {
	if msg.Err != nil {
		m.transcript.Add(components.Entry{Role: components.RoleError, Content: uxerror.Humanize(msg.Err).Render()})
		return
	}
	st := msg.Status
	m.transcript.Add(components.Entry{
		Role: components.RoleSystem,
		Content: fmt.Sprintf("%s %s, up %s\n  requests %d (in flight %d, failed %d), agents %d/%d healthy, sessions %d",
			st.Router.Name, st.Router.Version, time.Duration(st.Router.UptimeSeconds)*time.Second,
			st.Requests.Requests, st.Sessions.InFlight, st.Requests.Failures,
			st.Registry.HealthyAgents, st.Registry.TotalAgents, st.Sessions.Active),
	})
}

func (m Model) handleCommand(name string, _ []string) (tea.Model, tea.Cmd) {
	switch name {
	case "/help":
		m.transcript.Add(components.Entry{Role: components.RoleSystem, Content: helpText()})
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	case "/clear":
		m.transcript.Clear()
		m.transcript.Add(components.Entry{Role: components.RoleSystem, Content: theme.SymbolSuccess + " Conversation cleared."})
	case "/cancel":
		if m.waiting {
			return m, m.cancelRequest("Request cancelled.")
		}
		m.transcript.Add(components.Entry{Role: components.RoleSystem, Content: "No active request to cancel."})
	case "/agents":
		return m, agentsCmd(m.deps.Directory)
	case "/status":
		return m, statusCmd(m.deps.Directory)
	case "/speed":
		next := CycleStreamSpeed(m.streamCfg.Speed)
		m.streamCfg = StreamConfigForSpeed(next)
		m.transcript.Add(components.Entry{Role: components.RoleSystem, Content: "Reply speed: " + next.String()})
	default:
		m.transcript.Add(components.Entry{
			Role:    components.RoleSystem,
			Content: fmt.Sprintf("Unknown command: %s. Type /help for available commands.", name),
		})
	}
	return m, nil
}

// cancelRequest abandons the running request locally and asks the router to
// stop it.
func (m *Model) cancelRequest(reason string) tea.Cmd {
	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
	id := m.requestID
	m.gen++
	m.finish()
	m.transcript.Add(components.Entry{Role: components.RoleSystem, Content: reason})
	return cancelCmd(m.deps.Backend, id)
}

func (m *Model) finish() {
	m.waiting = false
	m.streaming = false
	m.input.SetEnabled(true)
	m.statusBar.Activity = ""
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("Commands:")
	for _, c := range slashCommands {
		sb.WriteString(fmt.Sprintf("\n  %-9s %s", c.Name, c.Description))
	}
	sb.WriteString(`

Keys:
  Enter      Send message
  Alt+Enter  New line
  Ctrl+L     Clear conversation
  Ctrl+C     Cancel or quit
  PgUp/PgDn  Scroll`)
	return sb.String()
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "/", Desc: "Commands"},
		{Key: "Ctrl+C", Desc: "Cancel/Quit"},
	}
}

// isMouseEscapeLeak detects mouse escape sequences that some terminals
// deliver as key input during fast scrolling (SGR, X11 and URXVT forms).
func isMouseEscapeLeak(s string) bool {
	if len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm') {
		return true
	}
	if len(s) < 5 {
		return false
	}
	switch {
	case s[0] == '<' && (s[len(s)-1] == 'M' || s[len(s)-1] == 'm'):
	case s[0] == '[' && s[len(s)-1] == 'M':
	default:
		return false
	}
	for _, r := range s[1 : len(s)-1] {
		if r != ';' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
