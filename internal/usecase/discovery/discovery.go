// Package discovery finds downstream agents on the local network and
// registers their cards with the router.
package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/registry"
	"a2a-router/internal/usecase/scheduling"
	"a2a-router/pkg/a2a"
)

const maxCardBytes = 1 << 20

// Browser lists advertised agents.
type Browser interface {
	Browse(ctx context.Context) ([]Entry, error)
}

// Registrar stores a discovered agent.
type Registrar interface {
	Register(ctx context.Context, desc domain.AgentDescriptor) (domain.AgentDescriptor, error)
}

// Scanner turns browse results into registrations.
type Scanner struct {
	browser   Browser
	registrar Registrar
	http      *http.Client
	logger    *slog.Logger
}

// NewScanner creates a Scanner. client fetches agent cards.
func NewScanner(browser Browser, registrar Registrar, client *http.Client, logger *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Scanner{browser: browser, registrar: registrar, http: client, logger: logger}
}

// Scan browses once and registers every agent whose card is valid. It
// returns the number of agents registered.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	entries, err := s.browser.Browse(ctx)
	if err != nil {
		return 0, domain.WrapOp("discovery scan", err)
	}

	registered := 0
	for _, e := range entries {
		card, err := s.fetchCard(ctx, e)
		if err != nil {
			s.logger.Warn("agent card fetch failed", "instance", e.Instance, "url", e.BaseURL, "error", err)
			continue
		}
		if _, err := s.registrar.Register(ctx, registry.DescriptorFromCard(card)); err != nil {
			s.logger.Warn("discovered agent rejected", "instance", e.Instance, "error", err)
			continue
		}
		registered++
	}
	s.logger.Info("discovery scan finished", "found", len(entries), "registered", registered)
	return registered, nil
}

func (s *Scanner) fetchCard(ctx context.Context, e Entry) (a2a.AgentCard, error) {
	path := e.CardPath
	if path == "" {
		path = a2a.WellKnownCardPath
	}
	url := strings.TrimRight(e.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return a2a.AgentCard{}, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return a2a.AgentCard{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return a2a.AgentCard{}, fmt.Errorf("card %s: status %d", url, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCardBytes))
	if err != nil {
		return a2a.AgentCard{}, err
	}
	return registry.DecodeCard(raw)
}

// Schedule runs Scan on schedule via s.
func (s *Scanner) Schedule(sched *scheduling.Scheduler, schedule string) error {
	sched.RegisterAction(scheduling.ActionDiscoveryScan, func(ctx context.Context) error {
		_, err := s.Scan(ctx)
		return err
	})
	return sched.AddTask(scheduling.ScheduledTask{
		Name:     "discovery-scan",
		Schedule: schedule,
		Action:   scheduling.ActionDiscoveryScan,
	})
}
