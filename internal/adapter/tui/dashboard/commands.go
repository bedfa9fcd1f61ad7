package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"a2a-router/internal/domain"
)

const snapshotTimeout = 5 * time.Second

func snapshotCmd(src Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		st, err := src.Status(ctx)
		if err != nil {
			return SnapshotMsg{Err: err}
		}
		agents, err := src.Agents(ctx)
		return SnapshotMsg{Status: st, Agents: agents, Err: err}
	}
}

func refreshAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return refreshMsg{} })
}

func waitForEvent(events <-chan domain.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return EventMsg{Event: ev}
	}
}
