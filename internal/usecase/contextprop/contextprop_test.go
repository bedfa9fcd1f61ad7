package contextprop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/eventbus"
	"a2a-router/internal/usecase/prompt"
)

type noAgents struct{}

func (noAgents) Discover(string) []domain.AgentDescriptor                 { return nil }
func (noAgents) DiscoverMany([]string) map[string][]domain.AgentDescriptor { return nil }
func (noAgents) ListAll() []domain.AgentDescriptor                        { return nil }
func (noAgents) Stats() domain.RegistryStats                              { return domain.RegistryStats{} }

func newPropagator(t *testing.T, u domain.Understander, bus domain.EventBus) *Propagator {
	t.Helper()
	lib, err := prompt.Default()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(u, prompt.NewProvider(lib, noAgents{}, logger), bus, logger)
}

func reply(text string, err error) domain.UnderstanderFunc {
	return func(context.Context, string, string, domain.UnderstandOptions) (string, error) {
		return text, err
	}
}

func TestCreateSessionIDsAreUnique(t *testing.T) {
	p := newPropagator(t, reply("", nil), nil)
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := p.CreateSession("hi")
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
	assert.Equal(t, 50, p.Active())
}

func TestBuildContextualRequest(t *testing.T) {
	p := newPropagator(t, reply(`{"extracted_info":"Seoul rain 18C","confidence":0.9}`, nil), nil)
	id := p.CreateSession("set the TV for the weather")

	assert.Equal(t, "set the TV for the weather", p.BuildContextualRequest(id, "set the TV for the weather", "weather_info"))
	assert.Equal(t, "plain", p.BuildContextualRequest("missing", "plain", "tv_control"))

	p.StoreResponse(id, "weather_info", "Seoul is rainy today, 18 degrees.")
	info := p.ExtractContext(context.Background(), id, "Seoul is rainy today, 18 degrees.", "weather_info")
	assert.Equal(t, "Seoul rain 18C", info)

	got := p.BuildContextualRequest(id, "set the TV for the weather", "tv_control")
	assert.True(t, strings.HasPrefix(got, "set the TV for the weather\n\n[Previous agent info]\n"))
	assert.Contains(t, got, "Handled by: weather_info")
	assert.Contains(t, got, "Extracted info: Seoul rain 18C")
	assert.True(t, strings.HasSuffix(got, "Please use the information above to handle the request."))
}

func TestBuildContextualRequestWithoutExtraction(t *testing.T) {
	p := newPropagator(t, reply("", nil), nil)
	id := p.CreateSession("x")
	p.StoreResponse(id, "a", "first answer")
	p.StoreResponse(id, "b", strings.Repeat("b", 150))

	got := p.BuildContextualRequest(id, "x", "c")
	assert.Contains(t, got, "Handled by: b")
	assert.Contains(t, got, "Extracted info: "+strings.Repeat("b", 100)+"...")
}

func TestStoreResponseOrderRecordedOnce(t *testing.T) {
	p := newPropagator(t, reply("", nil), nil)
	id := p.CreateSession("x")
	p.StoreResponse(id, "a", "1")
	p.StoreResponse(id, "b", "2")
	p.StoreResponse(id, "a", "3")

	s, err := p.Session(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Order)
	assert.Equal(t, "3", s.Responses["a"])

	p.StoreResponse("missing", "a", "ignored")
	_, err = p.Session("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestExtractContextFallbacks(t *testing.T) {
	long := strings.Repeat("가", 120)
	tests := []struct {
		name string
		u    domain.Understander
		resp string
		want string
	}{
		{"understanding error", reply("", errors.New("down")), long, strings.Repeat("가", 100) + "..."},
		{"malformed", reply("rain", nil), "short answer", "short answer"},
		{"empty info", reply(`{"extracted_info":""}`, nil), long, strings.Repeat("가", 100) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPropagator(t, tt.u, nil)
			id := p.CreateSession("x")
			assert.Equal(t, tt.want, p.ExtractContext(context.Background(), id, tt.resp, "weather_info"))
			s, err := p.Session(id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Extracted["weather_info"])
		})
	}
}

func TestCleanupSessionIdempotent(t *testing.T) {
	p := newPropagator(t, reply("", nil), nil)
	id := p.CreateSession("x")
	p.CleanupSession(id)
	p.CleanupSession(id)
	p.CleanupSession("never-existed")
	assert.Zero(t, p.Active())
}

func TestSweepDropsStaleSessions(t *testing.T) {
	bus := eventbus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var swept atomic.Int32
	bus.Subscribe(domain.EventSessionSwept, func(context.Context, domain.Event) { swept.Add(1) })

	p := newPropagator(t, reply("", nil), bus)
	base := time.Now()
	p.now = func() time.Time { return base.Add(-time.Hour) }
	old := p.CreateSession("old")
	p.now = func() time.Time { return base }
	fresh := p.CreateSession("fresh")

	assert.Equal(t, 1, p.Sweep(context.Background(), 10*time.Minute))
	bus.Close()

	_, err := p.Session(old)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = p.Session(fresh)
	assert.NoError(t, err)
	assert.Equal(t, int32(1), swept.Load())
	assert.Zero(t, p.Sweep(context.Background(), 10*time.Minute))
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	p := newPropagator(t, reply("", nil), nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := p.CreateSession(fmt.Sprint(i))
			p.StoreResponse(id, "skill", fmt.Sprint(i))
			s, err := p.Session(id)
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprint(i), s.Responses["skill"])
			p.CleanupSession(id)
		}()
	}
	wg.Wait()
	assert.Zero(t, p.Active())
}
