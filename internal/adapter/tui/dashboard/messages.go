// Package dashboard is routerctl's live monitoring view: router counters,
// the agent inventory and the event stream.
package dashboard

import (
	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/domain"
)

// EventMsg is one event streamed from the router.
type EventMsg struct {
	Event domain.Event
}

// SnapshotMsg carries a fresh status and inventory read.
type SnapshotMsg struct {
	Status gateway.StatusResponse
	Agents gateway.AgentsResponse
	Err    error
}

// refreshMsg triggers the next snapshot.
type refreshMsg struct{}
