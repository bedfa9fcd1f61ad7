package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"a2a-router/internal/adapter/agentrpc"
	"a2a-router/internal/adapter/routerclient"
	"a2a-router/internal/adapter/tui/chat"
	"a2a-router/internal/adapter/tui/dashboard"
	"a2a-router/internal/adapter/tui/uxerror"
	"a2a-router/internal/infra/config"
	"a2a-router/internal/infra/logger"
)

// sendTimeout bounds a one-shot routed request end to end.
const sendTimeout = 3 * time.Minute

// clientLogger writes to --log when given. The TUI owns the terminal, so
// logs are otherwise discarded.
func clientLogger() (*slog.Logger, func() error, error) {
	path := flagValue("--log")
	if path == "" {
		return slog.New(slog.DiscardHandler), func() error { return nil }, nil
	}
	return logger.New(config.LoggerConfig{Level: "debug", Format: "text", Output: path})
}

func newClient(log *slog.Logger) *routerclient.Client {
	caller := agentrpc.New(config.AgentRPCConfig{Timeout: sendTimeout}, log)
	return routerclient.New(routerURL(), nil, caller)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// explain turns a client error into the same title and hint the TUI shows.
func explain(err error) error {
	ux := uxerror.Humanize(err)
	msg := ux.Title + ": " + ux.Message
	for _, h := range ux.Hints {
		msg += "\n  " + h
	}
	return errors.New(msg)
}

func runChat() error {
	log, closeLog, err := clientLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	session, err := routerclient.Dial(ctx, routerURL())
	if err != nil {
		return explain(err)
	}
	defer session.Close()

	return chat.Run(ctx, chat.Deps{
		Backend:   session,
		Directory: newClient(log),
		RouterURL: routerURL(),
		Speed:     chat.ParseStreamSpeed(flagValue("--speed")),
		Logger:    log,
	})
}

func runDashboard() error {
	log, closeLog, err := clientLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	client := newClient(log)
	deps := dashboard.Deps{Source: client, RouterURL: routerURL()}

	// Without the event stream the dashboard still polls status.
	session, err := routerclient.Dial(ctx, routerURL())
	if err != nil {
		log.Warn("event stream unavailable", "error", err)
	} else {
		defer session.Close()
		deps.Events = session.Events()
	}
	return dashboard.Run(ctx, deps)
}

func runCards(w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newClient(slog.New(slog.DiscardHandler))
	card, err := client.Card(ctx)
	if err != nil {
		return explain(err)
	}
	agents, err := client.Agents(ctx)
	if err != nil {
		return explain(err)
	}

	if hasFlag("--json") {
		return writeJSON(w, map[string]any{"router": card, "agents": agents.Agents})
	}
	renderCards(w, card, agents.Agents)
	return nil
}

func runStatus(w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := newClient(slog.New(slog.DiscardHandler)).Status(ctx)
	if err != nil {
		return explain(err)
	}
	if hasFlag("--json") {
		return writeJSON(w, st)
	}
	renderStatus(w, st)
	return nil
}

func runSend(w io.Writer, text string) error {
	log, closeLog, err := clientLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, sendTimeout)
	defer cancelTimeout()

	start := time.Now()
	reply, err := newClient(log).Send(ctx, text)
	if err != nil {
		return explain(err)
	}
	fmt.Fprintln(w, reply)
	log.Debug("send finished", "elapsed", time.Since(start))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
