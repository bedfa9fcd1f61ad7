package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"a2a-router/internal/domain"
)

const lookupTimeout = 5 * time.Second

// sendCmd routes text in the background. gen tags the reply so a cancelled
// request's late answer is ignored.
func sendCmd(ctx context.Context, b Backend, requestID, text string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		reply, err := b.Chat(ctx, requestID, text)
		return ReplyMsg{Reply: reply, Err: err, Gen: gen, Elapsed: time.Since(start)}
	}
}

func cancelCmd(b Backend, requestID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()
		running, err := b.Cancel(ctx, requestID)
		return CancelledMsg{RequestID: requestID, Running: running, Err: err}
	}
}

// waitForEvent blocks on the next router event. The model re-arms it after
// every EventMsg.
func waitForEvent(events <-chan domain.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func agentsCmd(d Directory) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()
		resp, err := d.Agents(ctx)
		return AgentsMsg{Agents: resp, Err: err}
	}
}

func statusCmd(d Directory) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()
		st, err := d.Status(ctx)
		return StatusMsg{Status: st, Err: err}
	}
}

// streamTickCmd schedules the next chunk of progressive rendering.
func streamTickCmd(rate time.Duration) tea.Cmd {
	if rate <= 0 {
		rate = 16 * time.Millisecond
	}
	return tea.Tick(rate, func(time.Time) tea.Msg { return StreamTickMsg{} })
}
