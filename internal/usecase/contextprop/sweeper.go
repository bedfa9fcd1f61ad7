package contextprop

import (
	"context"
	"time"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/scheduling"
)

// Sweep removes sessions older than maxAge and returns how many it dropped.
// Requests clean up after themselves; this catches the ones that could not.
func (p *Propagator) Sweep(ctx context.Context, maxAge time.Duration) int {
	cutoff := p.now().Add(-maxAge)

	p.mu.Lock()
	var swept []string
	for id, s := range p.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(p.sessions, id)
			swept = append(swept, id)
		}
	}
	p.mu.Unlock()

	if len(swept) == 0 {
		return 0
	}
	p.logger.Info("stale sessions swept", "count", len(swept), "max_age", maxAge)
	if p.bus != nil {
		for _, id := range swept {
			p.bus.Publish(ctx, domain.NewEvent(domain.EventSessionSwept, id, map[string]any{"max_age": maxAge.String()}))
		}
	}
	return len(swept)
}

// ScheduleSweep registers the sweep with s on the given schedule.
func (p *Propagator) ScheduleSweep(s *scheduling.Scheduler, schedule string, maxAge time.Duration) error {
	s.RegisterAction(scheduling.ActionSessionSweep, func(ctx context.Context) error {
		p.Sweep(ctx, maxAge)
		return nil
	})
	return s.AddTask(scheduling.ScheduledTask{
		Name:     "session-sweep",
		Schedule: schedule,
		Action:   scheduling.ActionSessionSweep,
	})
}
