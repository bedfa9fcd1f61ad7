package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(newTestLogger())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewScheduler(newTestLogger()).Stop())
}

func TestSchedulerActionFires(t *testing.T) {
	var count atomic.Int32
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionSessionSweep, func(context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, s.AddTask(ScheduledTask{Name: "sweep", Schedule: "20ms", Action: ActionSessionSweep}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return count.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerActionErrorKeepsRunning(t *testing.T) {
	var count atomic.Int32
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionDiscoveryScan, func(context.Context) error {
		count.Add(1)
		return errors.New("mdns down")
	})
	require.NoError(t, s.AddTask(ScheduledTask{Name: "scan", Schedule: "20ms", Action: ActionDiscoveryScan}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return count.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerContextCancelledOnStop(t *testing.T) {
	started := make(chan struct{})
	done := make(chan error, 1)
	var once atomic.Bool
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionSessionSweep, func(ctx context.Context) error {
		if !once.CompareAndSwap(false, true) {
			return nil
		}
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	require.NoError(t, s.AddTask(ScheduledTask{Name: "slow", Schedule: "10ms", Action: ActionSessionSweep}))
	require.NoError(t, s.Start(context.Background()))

	<-started
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSchedulerRejectsUnknownActionAndBadSchedule(t *testing.T) {
	s := NewScheduler(newTestLogger())
	assert.Error(t, s.AddTask(ScheduledTask{Name: "x", Schedule: "1s", Action: "nope"}))

	s.RegisterAction(ActionSessionSweep, func(context.Context) error { return nil })
	assert.Error(t, s.AddTask(ScheduledTask{Name: "x", Schedule: "whenever", Action: ActionSessionSweep}))
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"@every 1m", false},
		{"@hourly", false},
		{"30s", false},
		{"10ms", false},
		{"", true},
		{"-5s", true},
		{"not a schedule", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseSchedule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConstantDelayNext(t *testing.T) {
	sched, err := ParseSchedule("250ms")
	require.NoError(t, err)
	now := time.Now()
	assert.Equal(t, now.Add(250*time.Millisecond), sched.Next(now))
}
