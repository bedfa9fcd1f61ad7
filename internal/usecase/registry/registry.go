// Package registry keeps the capability registry: which agents are known,
// which skills they declare and which agent serves a skill.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"a2a-router/internal/domain"
)

// Observer runs after a registration commits. Errors and panics are logged
// and never fail the registration.
type Observer func(ctx context.Context, agent domain.AgentDescriptor) error

// Registry is a single-writer, many-reader store of agents and a skill index.
// A registration updates the agent map and the index under one lock, so
// readers never observe a half-applied registration.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]domain.AgentDescriptor
	order  []string            // agent ids in first-registration order
	index  map[string][]string // skill id -> agent ids in registration order

	obsMu     sync.RWMutex
	observers []Observer

	bus    domain.EventBus
	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty registry. bus may be nil.
func New(bus domain.EventBus, logger *slog.Logger) *Registry {
	return &Registry{
		agents: make(map[string]domain.AgentDescriptor),
		index:  make(map[string][]string),
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// OnRegister adds a post-commit observer.
func (r *Registry) OnRegister(obs Observer) {
	r.obsMu.Lock()
	r.observers = append(r.observers, obs)
	r.obsMu.Unlock()
}

// Register validates desc and upserts it under its derived identity. A
// re-registration replaces the previous descriptor and skill list whole. The
// stored descriptor is returned.
func (r *Registry) Register(ctx context.Context, desc domain.AgentDescriptor) (domain.AgentDescriptor, error) {
	if err := validateDescriptor(desc); err != nil {
		r.logger.Warn("agent registration rejected", "name", desc.Name, "url", desc.Address, "error", err)
		return domain.AgentDescriptor{}, err
	}

	desc.ID = domain.AgentIdentity(desc.Name, desc.Address)
	desc.Healthy = true
	desc.RegisteredAt = r.now()
	desc.Skills = slices.Clone(desc.Skills)

	r.mu.Lock()
	prev, existed := r.agents[desc.ID]
	r.agents[desc.ID] = desc
	if !existed {
		r.order = append(r.order, desc.ID)
	} else {
		for _, s := range prev.Skills {
			if !desc.HasSkill(s.ID) {
				r.index[s.ID] = slices.DeleteFunc(r.index[s.ID], func(id string) bool { return id == desc.ID })
				if len(r.index[s.ID]) == 0 {
					delete(r.index, s.ID)
				}
			}
		}
	}
	for _, s := range desc.Skills {
		if !slices.Contains(r.index[s.ID], desc.ID) {
			r.index[s.ID] = append(r.index[s.ID], desc.ID)
		}
	}
	r.mu.Unlock()

	r.logger.Info("agent registered",
		"agent_id", desc.ID,
		"url", desc.Address,
		"skills", desc.SkillIDs(),
		"replaced", existed,
	)

	r.notify(ctx, desc)
	if r.bus != nil {
		r.bus.Publish(ctx, domain.NewEvent(domain.EventAgentRegistered, "", map[string]any{
			"agent_id": desc.ID,
			"name":     desc.Name,
			"url":      desc.Address,
			"skills":   desc.SkillIDs(),
			"replaced": existed,
		}))
	}
	return desc, nil
}

func (r *Registry) notify(ctx context.Context, desc domain.AgentDescriptor) {
	r.obsMu.RLock()
	observers := slices.Clone(r.observers)
	r.obsMu.RUnlock()

	for i, obs := range observers {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("registry observer panicked", "observer", i, "agent_id", desc.ID, "panic", p)
				}
			}()
			if err := obs(ctx, desc); err != nil {
				r.logger.Warn("registry observer failed", "observer", i, "agent_id", desc.ID, "error", err)
			}
		}()
	}
}

func validateDescriptor(desc domain.AgentDescriptor) error {
	var problems []string
	if strings.TrimSpace(desc.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(desc.Address) == "" {
		problems = append(problems, "url is required")
	}
	if len(desc.Skills) == 0 {
		problems = append(problems, "at least one skill is required")
	}
	for i, s := range desc.Skills {
		if strings.TrimSpace(s.ID) == "" {
			problems = append(problems, fmt.Sprintf("skills[%d].id is required", i))
		}
	}
	if len(problems) > 0 {
		return domain.NewSubSystemError("registry", "Registry.Register", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// SetHealth flips an agent's advisory health flag.
func (r *Registry) SetHealth(agentID string, healthy bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return domain.NewSubSystemError("registry", "Registry.SetHealth", domain.ErrNotFound, agentID)
	}
	a.Healthy = healthy
	r.agents[agentID] = a
	return nil
}

// Get returns one agent by id.
func (r *Registry) Get(agentID string) (domain.AgentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return domain.AgentDescriptor{}, domain.NewSubSystemError("registry", "Registry.Get", domain.ErrNotFound, agentID)
	}
	return a, nil
}

// Discover returns healthy agents declaring skillID in registration order.
// It never returns nil.
func (r *Registry) Discover(skillID string) []domain.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.discoverLocked(skillID)
}

func (r *Registry) discoverLocked(skillID string) []domain.AgentDescriptor {
	out := []domain.AgentDescriptor{}
	for _, id := range r.index[skillID] {
		if a := r.agents[id]; a.Healthy {
			out = append(out, a)
		}
	}
	return out
}

// DiscoverMany resolves several skills against one consistent view.
func (r *Registry) DiscoverMany(skillIDs []string) map[string][]domain.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]domain.AgentDescriptor, len(skillIDs))
	for _, id := range skillIDs {
		out[id] = r.discoverLocked(id)
	}
	return out
}

// ListAll returns every agent, healthy or not, in registration order.
func (r *Registry) ListAll() []domain.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Stats summarizes the inventory.
func (r *Registry) Stats() domain.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.RegistryStats{
		TotalAgents: len(r.agents),
		Agents:      make([]domain.AgentSummary, 0, len(r.order)),
	}
	for _, id := range r.order {
		a := r.agents[id]
		if a.Healthy {
			stats.HealthyAgents++
		}
		stats.Agents = append(stats.Agents, domain.AgentSummary{
			ID:      a.ID,
			Name:    a.Name,
			Address: a.Address,
			Healthy: a.Healthy,
			Skills:  a.SkillIDs(),
		})
	}
	stats.SkillIDs = make([]string, 0, len(r.index))
	for skill := range r.index {
		stats.SkillIDs = append(stats.SkillIDs, skill)
	}
	slices.Sort(stats.SkillIDs)
	stats.DistinctSkills = len(stats.SkillIDs)
	return stats
}

var _ domain.AgentDirectory = (*Registry)(nil)
