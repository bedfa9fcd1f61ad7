package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/adapter/tui/theme"
	"a2a-router/internal/domain"
	"a2a-router/pkg/a2a"
)

func renderCards(w io.Writer, router a2a.AgentCard, agents []domain.AgentDescriptor) {
	fmt.Fprintf(w, "%s %s\n", theme.Bold.Render(router.Name), theme.TextMuted.Render(router.Version))
	fmt.Fprintf(w, "  %s\n", router.URL)
	if router.Description != "" {
		fmt.Fprintf(w, "  %s\n", theme.Dim.Render(router.Description))
	}
	fmt.Fprintln(w)

	if len(agents) == 0 {
		fmt.Fprintln(w, theme.TextWarning.Render("No agents registered."))
		return
	}
	fmt.Fprintf(w, "%s\n", theme.Bold.Render(fmt.Sprintf("Registered agents (%d)", len(agents))))
	for _, a := range agents {
		mark := theme.TextSuccess.Render(theme.SymbolSuccess)
		if !a.Healthy {
			mark = theme.TextError.Render(theme.SymbolError)
		}
		fmt.Fprintf(w, "\n%s %s  %s\n", mark, theme.AgentLabel.Render(a.Name), theme.TextMuted.Render(a.ID))
		fmt.Fprintf(w, "    url: %s\n", a.Address)
		if a.Description != "" {
			fmt.Fprintf(w, "    %s\n", a.Description)
		}
		for _, s := range a.Skills {
			line := fmt.Sprintf("    %s %s", theme.SymbolBullet, theme.TextInfo.Render(s.ID))
			if s.Name != "" && s.Name != s.ID {
				line += " " + s.Name
			}
			if len(s.Keywords) > 0 {
				line += theme.TextMuted.Render(" [" + strings.Join(firstN(s.Keywords, 6), ", ") + "]")
			}
			fmt.Fprintln(w, line)
		}
	}
}

func renderStatus(w io.Writer, st gateway.StatusResponse) {
	fmt.Fprintf(w, "%s %s at %s, up %s\n",
		theme.Bold.Render(st.Router.Name), st.Router.Version, st.Router.URL, uptime(st.Router.UptimeSeconds))
	fmt.Fprintf(w, "  agents    %d healthy / %d total, %d skills, %d registrations\n",
		st.Registry.HealthyAgents, st.Registry.TotalAgents, st.Registry.DistinctSkills, st.Registry.Registrations)
	fmt.Fprintf(w, "  requests  %d total, %d direct, %d dispatches, %d failed, %d cancelled\n",
		st.Requests.Requests, st.Requests.Direct, st.Requests.Dispatches, st.Requests.Failures, st.Requests.Cancelled)
	fmt.Fprintf(w, "  calls     %d total, %d failed\n", st.Calls.Total, st.Calls.Failures)
	fmt.Fprintf(w, "  sessions  %d active, %d in flight\n", st.Sessions.Active, st.Sessions.InFlight)

	if len(st.Breakers) == 0 {
		return
	}
	addrs := make([]string, 0, len(st.Breakers))
	for a := range st.Breakers {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	fmt.Fprintln(w, "  breakers")
	for _, a := range addrs {
		state := st.Breakers[a]
		style := theme.TextSuccess
		switch state {
		case "open":
			style = theme.TextError
		case "half-open":
			style = theme.TextWarning
		}
		fmt.Fprintf(w, "    %s %s\n", a, style.Render(state))
	}
}

func uptime(seconds int64) string {
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func firstN(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return append(list[:n:n], theme.SymbolEllipsis)
}
