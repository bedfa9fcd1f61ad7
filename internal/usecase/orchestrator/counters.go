package orchestrator

import "sync/atomic"

type counters struct {
	requests   atomic.Uint64
	direct     atomic.Uint64
	dispatches atomic.Uint64
	failures   atomic.Uint64
	cancelled  atomic.Uint64
	panics     atomic.Uint64
}

// Counters is a snapshot of request totals since start.
type Counters struct {
	Requests   uint64 `json:"requests"`
	Direct     uint64 `json:"direct"`
	Dispatches uint64 `json:"dispatches"`
	Failures   uint64 `json:"failures"`
	Cancelled  uint64 `json:"cancelled"`
	Panics     uint64 `json:"panics"`
}

// Counters returns the current totals.
func (o *Orchestrator) Counters() Counters {
	return Counters{
		Requests:   o.counters.requests.Load(),
		Direct:     o.counters.direct.Load(),
		Dispatches: o.counters.dispatches.Load(),
		Failures:   o.counters.failures.Load(),
		Cancelled:  o.counters.cancelled.Load(),
		Panics:     o.counters.panics.Load(),
	}
}
