package gateway

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"slices"
	"time"

	"a2a-router/internal/domain"
)

type metricWriter struct {
	w io.Writer
}

func (m metricWriter) write(name, kind, help string, value any) {
	fmt.Fprintf(m.w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(m.w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(m.w, "%s %v\n", name, value)
}

// metricsHandler returns an HTTP handler for GET /metrics in Prometheus text format.
// This uses the lightweight text format to avoid pulling in the full prometheus client.
func metricsHandler(deps HandlerDeps, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m := metricWriter{w: w}

		counters := deps.Router.Counters()
		m.write("a2arouter_requests_total", "counter", "Requests handled.", counters.Requests)
		m.write("a2arouter_requests_direct_total", "counter", "Requests answered without dispatch.", counters.Direct)
		m.write("a2arouter_dispatches_total", "counter", "Requests dispatched to agents.", counters.Dispatches)
		m.write("a2arouter_dispatch_failures_total", "counter", "Dispatches with at least one failed agent call.", counters.Failures)
		m.write("a2arouter_requests_cancelled_total", "counter", "Requests cancelled by clients.", counters.Cancelled)
		m.write("a2arouter_request_panics_total", "counter", "Requests recovered from a panic.", counters.Panics)
		m.write("a2arouter_requests_in_flight", "gauge", "Requests currently being handled.", deps.Router.InFlight())

		stats := deps.Registry.Stats()
		m.write("a2arouter_agents_registered", "gauge", "Agents in the registry.", stats.TotalAgents)
		m.write("a2arouter_agents_healthy", "gauge", "Healthy agents in the registry.", stats.HealthyAgents)
		m.write("a2arouter_skills_distinct", "gauge", "Distinct skill ids across agents.", stats.DistinctSkills)
		m.write("a2arouter_registrations_total", "counter", "Successful registrations.", metrics.Registrations.Load())

		m.write("a2arouter_agent_calls_total", "counter", "Calls made to downstream agents.", metrics.AgentCalls.Load())
		m.write("a2arouter_agent_call_failures_total", "counter", "Downstream calls that failed.", metrics.AgentCallFailures.Load())

		active := 0
		if deps.Sessions != nil {
			active = deps.Sessions.Active()
		}
		m.write("a2arouter_sessions_active", "gauge", "Open propagation sessions.", active)
		m.write("a2arouter_sessions_swept_total", "counter", "Stale sessions removed by the sweeper.", metrics.SessionsSwept.Load())

		if published, ok := deps.Bus.(interface {
			Published() map[domain.EventType]uint64
		}); ok {
			writeEventCounts(w, published.Published())
		}

		m.write("a2arouter_uptime_seconds", "gauge", "Seconds since the router started.", fmt.Sprintf("%.0f", time.Since(startTime).Seconds()))

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		m.write("go_goroutines", "gauge", "Number of goroutines.", runtime.NumGoroutine())
		m.write("go_memstats_alloc_bytes", "gauge", "Bytes of allocated heap objects.", mem.Alloc)
		m.write("go_memstats_sys_bytes", "gauge", "Total bytes of memory obtained from the OS.", mem.Sys)
		m.write("go_gc_duration_seconds", "gauge", "Total GC pause duration.", fmt.Sprintf("%f", float64(mem.PauseTotalNs)/1e9))
	}
}

func writeEventCounts(w io.Writer, counts map[domain.EventType]uint64) {
	fmt.Fprintf(w, "# HELP a2arouter_events_published_total Events published on the bus.\n")
	fmt.Fprintf(w, "# TYPE a2arouter_events_published_total counter\n")
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Fprintf(w, "a2arouter_events_published_total{type=%q} %d\n", t, counts[domain.EventType(t)])
	}
}
