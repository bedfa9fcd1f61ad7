package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// Defaults for the DNS-SD service agents advertise.
const (
	DefaultService = "_a2aagent._tcp"
	DefaultDomain  = "local."
)

// TXT record keys.
const (
	txtScheme   = "scheme"
	txtCardPath = "card"
)

// Entry is one advertised agent found on the network.
type Entry struct {
	Instance string
	BaseURL  string
	CardPath string
}

// MDNS browses and advertises agents over mDNS/DNS-SD.
type MDNS struct {
	service string
	domain  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMDNS creates an MDNS for service in domain. Empty values take the
// defaults; timeout bounds one browse.
func NewMDNS(service, domain string, timeout time.Duration, logger *slog.Logger) *MDNS {
	if service == "" {
		service = DefaultService
	}
	if domain == "" {
		domain = DefaultDomain
	}
	return &MDNS{service: service, domain: domain, timeout: timeout, logger: logger}
}

// Browse collects the agents answering within the scan timeout.
func (m *MDNS) Browse(ctx context.Context) ([]Entry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	var found []Entry
	var wg sync.WaitGroup

	scanCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for se := range entries {
			e, ok := entryFromService(se)
			if !ok {
				continue
			}
			mu.Lock()
			found = append(found, e)
			mu.Unlock()
			m.logger.Debug("mdns discovered agent", "instance", e.Instance, "url", e.BaseURL)
		}
	}()

	if err := resolver.Browse(scanCtx, m.service, m.domain, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	// The resolver closes entries once scanCtx ends.
	<-scanCtx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return append([]Entry(nil), found...), nil
}

// Advertise publishes this agent until ctx is cancelled. Call it in a
// goroutine.
func (m *MDNS) Advertise(ctx context.Context, instance string, port int, cardPath string) error {
	txt := []string{txtScheme + "=http", txtCardPath + "=" + cardPath}
	server, err := zeroconf.Register(instance, m.service, m.domain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	m.logger.Info("mdns advertising", "instance", instance, "service", m.service, "port", port)
	<-ctx.Done()
	server.Shutdown()
	return nil
}

func entryFromService(se *zeroconf.ServiceEntry) (Entry, bool) {
	var host string
	switch {
	case len(se.AddrIPv4) > 0:
		host = fmt.Sprintf("%s:%d", se.AddrIPv4[0], se.Port)
	case len(se.AddrIPv6) > 0:
		host = fmt.Sprintf("[%s]:%d", se.AddrIPv6[0], se.Port)
	default:
		return Entry{}, false
	}

	txt := parseTXTRecords(se.Text)
	scheme := txt[txtScheme]
	if scheme == "" {
		scheme = "http"
	}
	return Entry{
		Instance: se.ServiceRecord.Instance,
		BaseURL:  scheme + "://" + host,
		CardPath: txt[txtCardPath],
	}, true
}

func parseTXTRecords(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		if k, v, ok := strings.Cut(t, "="); ok {
			m[k] = v
		}
	}
	return m
}
