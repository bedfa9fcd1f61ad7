package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/domain"
	"a2a-router/pkg/a2a"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type staticBrowser struct {
	entries []Entry
	err     error
}

func (b staticBrowser) Browse(context.Context) ([]Entry, error) { return b.entries, b.err }

type recordingRegistrar struct {
	got []domain.AgentDescriptor
}

func (r *recordingRegistrar) Register(_ context.Context, d domain.AgentDescriptor) (domain.AgentDescriptor, error) {
	if len(d.Skills) == 0 {
		return d, errors.New("no skills")
	}
	r.got = append(r.got, d)
	return d, nil
}

func cardServer(t *testing.T, card a2a.AgentCard) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(a2a.CardHandler(card))
	t.Cleanup(srv.Close)
	return srv
}

func TestScanRegistersValidCards(t *testing.T) {
	good := cardServer(t, a2a.NewCard("TV Agent", "tv", "1.0.0", "http://tv.local:18002",
		a2a.ExtendedSkill{AgentSkill: a2a.AgentSkill{ID: "tv_control", Name: "TV"}, DomainCategory: "tv"}))
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer broken.Close()
	invalid := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "x"})
	}))
	defer invalid.Close()

	reg := &recordingRegistrar{}
	s := NewScanner(staticBrowser{entries: []Entry{
		{Instance: "tv", BaseURL: good.URL},
		{Instance: "gone", BaseURL: broken.URL},
		{Instance: "bad", BaseURL: invalid.URL, CardPath: "/card.json"},
	}}, reg, good.Client(), discardLogger())

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, reg.got, 1)
	assert.Equal(t, "TV Agent", reg.got[0].Name)
	assert.Equal(t, "http://tv.local:18002", reg.got[0].Address)
	assert.Equal(t, "tv", reg.got[0].Skills[0].DomainCategory)
}

func TestScanBrowseError(t *testing.T) {
	s := NewScanner(staticBrowser{err: errors.New("no multicast")}, &recordingRegistrar{}, nil, discardLogger())
	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

func TestEntryFromService(t *testing.T) {
	se := zeroconf.NewServiceEntry("weather", DefaultService, DefaultDomain)
	se.Port = 18001
	se.Text = []string{"card=/.well-known/agent.json", "scheme=http"}
	se.AddrIPv4 = []net.IP{net.IPv4(192, 168, 1, 10)}

	e, ok := entryFromService(se)
	require.True(t, ok)
	assert.Equal(t, "weather", e.Instance)
	assert.Equal(t, "http://192.168.1.10:18001", e.BaseURL)
	assert.Equal(t, "/.well-known/agent.json", e.CardPath)

	_, ok = entryFromService(zeroconf.NewServiceEntry("noaddr", DefaultService, DefaultDomain))
	assert.False(t, ok)
}

func TestParseTXTRecords(t *testing.T) {
	m := parseTXTRecords([]string{"a=1", "b=x=y", "junk"})
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, m)
}

func TestNewMDNSDefaults(t *testing.T) {
	m := NewMDNS("", "", 0, discardLogger())
	assert.Equal(t, DefaultService, m.service)
	assert.Equal(t, DefaultDomain, m.domain)
}
