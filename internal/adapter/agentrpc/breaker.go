package agentrpc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"a2a-router/internal/infra/config"
)

const (
	defaultMaxFailures uint32 = 3
	defaultOpenTimeout        = 30 * time.Second
	defaultInterval           = 60 * time.Second
)

// breakers keeps one circuit breaker per agent address so a dead agent fails
// fast without affecting its siblings.
type breakers struct {
	mu     sync.Mutex
	byAddr map[string]*gobreaker.CircuitBreaker[string]
	cfg    config.CircuitBreakerConfig
	logger *slog.Logger
}

func newBreakers(cfg config.CircuitBreakerConfig, logger *slog.Logger) *breakers {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOpenTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	return &breakers{byAddr: make(map[string]*gobreaker.CircuitBreaker[string]), cfg: cfg, logger: logger}
}

func (b *breakers) get(address string) *gobreaker.CircuitBreaker[string] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.byAddr[address]; ok {
		return cb
	}
	maxFailures := b.cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "agent:" + address,
		MaxRequests: 1,
		Interval:    b.cfg.Interval,
		Timeout:     b.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("agent circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	b.byAddr[address] = cb
	return cb
}

// states snapshots every breaker's state by address.
func (b *breakers) states() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.byAddr))
	for addr, cb := range b.byAddr {
		out[addr] = cb.State().String()
	}
	return out
}
