// Package journal keeps an append-only JSONL record of every event published
// on the router's event bus, trimmed periodically by age and size.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"a2a-router/internal/domain"
	"a2a-router/internal/infra/tracer"
	"a2a-router/internal/usecase/scheduling"
)

// maxLine bounds a single journal entry when reading the file back.
const maxLine = 1 << 20

// Retention controls how much history the journal keeps. Zero fields mean
// no limit.
type Retention struct {
	MaxAge  time.Duration
	MaxSize int64
}

// Journal appends events to a file, one JSON object per line.
type Journal struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	retention Retention
	logger    *slog.Logger
	detach    func()
}

// Open creates or appends to the journal at path with 0600 permissions.
func Open(path string, retention Retention, logger *slog.Logger) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{file: f, path: path, retention: retention, logger: logger}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

// Append writes ev as one line. When a span is recording, the event is also
// attached to it.
func (j *Journal) Append(ctx context.Context, ev domain.Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return domain.NewSubSystemError("journal", "Journal.Append", domain.ErrJournalWrite, err.Error())
	}

	j.mu.Lock()
	_, err = j.file.Write(append(data, '\n'))
	j.mu.Unlock()
	if err != nil {
		return domain.NewSubSystemError("journal", "Journal.Append", domain.ErrJournalWrite, err.Error())
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		attrs := []attribute.KeyValue{tracer.StringAttr("journal.type", string(ev.Type))}
		if ev.SessionID != "" {
			attrs = append(attrs, tracer.StringAttr("journal.session_id", ev.SessionID))
		}
		span.AddEvent("journal."+string(ev.Type), trace.WithAttributes(attrs...))
	}
	return nil
}

// Attach subscribes the journal to every event on bus. Write failures are
// logged and never reach publishers.
func (j *Journal) Attach(bus domain.EventBus) {
	unsubscribe := bus.SubscribeAll(func(ctx context.Context, ev domain.Event) {
		if err := j.Append(ctx, ev); err != nil {
			j.logger.Warn("journal append failed", "type", ev.Type, "error", err)
		}
	})
	j.mu.Lock()
	j.detach = unsubscribe
	j.mu.Unlock()
}

// Schedule registers retention enforcement with s.
func (j *Journal) Schedule(s *scheduling.Scheduler, schedule string) error {
	s.RegisterAction(scheduling.ActionJournalRetention, func(ctx context.Context) error {
		removed, err := j.Enforce(ctx)
		if removed > 0 {
			j.logger.Info("journal trimmed", "removed", removed)
		}
		return err
	})
	return s.AddTask(scheduling.ScheduledTask{
		Name:     "journal-retention",
		Schedule: schedule,
		Action:   scheduling.ActionJournalRetention,
	})
}

// Enforce rewrites the journal keeping only entries within the retention
// policy; the oldest entries go first when the size limit is exceeded.
func (j *Journal) Enforce(ctx context.Context) (removed int, err error) {
	policy := j.retention
	if policy.MaxAge <= 0 && policy.MaxSize <= 0 {
		return 0, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if policy.MaxAge <= 0 {
		info, err := os.Stat(j.path)
		if err != nil {
			return 0, fmt.Errorf("stat journal: %w", err)
		}
		if info.Size() <= policy.MaxSize {
			return 0, nil
		}
	}

	var cutoff time.Time
	if policy.MaxAge > 0 {
		cutoff = time.Now().Add(-policy.MaxAge)
	}

	kept, keptSize, removed, err := readKept(j.path, cutoff)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for policy.MaxSize > 0 && keptSize > policy.MaxSize && len(kept) > 0 {
		keptSize -= int64(len(kept[0])) + 1
		kept = kept[1:]
		removed++
	}
	if removed == 0 {
		return 0, nil
	}

	if err := j.file.Close(); err != nil {
		return 0, fmt.Errorf("close journal: %w", err)
	}
	writeErr := replace(j.path, kept)

	// Reopen even when the rewrite failed so later appends keep working.
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("reopen journal: %w", err)
	}
	j.file = f
	if writeErr != nil {
		return 0, writeErr
	}
	return removed, nil
}

func readKept(path string, cutoff time.Time) (kept [][]byte, size int64, removed int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !cutoff.IsZero() {
			var entry struct {
				Timestamp time.Time `json:"timestamp"`
			}
			if json.Unmarshal(line, &entry) == nil && !entry.Timestamp.IsZero() && entry.Timestamp.Before(cutoff) {
				removed++
				continue
			}
		}
		kept = append(kept, slices.Clone(line))
		size += int64(len(line)) + 1
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("scan journal: %w", err)
	}
	return kept, size, removed, nil
}

func replace(path string, lines [][]byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create temp journal: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp journal: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp journal: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp journal: %w", err)
	}
	return nil
}

// Read returns the journal's entries in order, optionally filtered by type.
// Lines that fail to decode are skipped.
func Read(path string, types ...domain.EventType) ([]domain.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var events []domain.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		var ev domain.Event
		if json.Unmarshal(scanner.Bytes(), &ev) != nil {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, ev.Type) {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// Close detaches from the bus and closes the file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.detach != nil {
		j.detach()
		j.detach = nil
	}
	return j.file.Close()
}
