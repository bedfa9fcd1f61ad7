package middleware

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"a2a-router/internal/infra/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func limiter(t *testing.T, perMin, burst int, trusted ...string) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: perMin,
		Burst:          burst,
		TrustedProxies: trusted,
	})(okHandler)
}

func hit(h http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil)
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, req)

	want := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Content-Security-Policy": "default-src 'self'",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
	}
	for header, value := range want {
		assert.Equal(t, value, w.Header().Get(header), header)
	}
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeadersHSTSWithTLS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, req)

	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	h := limiter(t, 6, 3)

	ok, blocked := 0, 0
	for i := 0; i < 10; i++ {
		switch hit(h, "192.168.1.1:12345") {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			blocked++
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, blocked)
}

func TestRateLimitSeparatesClients(t *testing.T) {
	h := limiter(t, 6, 2)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.1:1"))
	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.2:1"))
}

func TestRateLimitRetryAfter(t *testing.T) {
	h := limiter(t, 6, 1)
	hit(h, "10.1.1.1:1")

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.1.1.1:1"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		xff     string
		xri     string
		trusted []string
		want    string
	}{
		{"direct", "192.168.1.1:12345", "", "", nil, "192.168.1.1"},
		{"ipv6 direct", "[::1]:8080", "", "", nil, "::1"},
		{"untrusted xff ignored", "1.2.3.4:1", "8.8.8.8", "", []string{"192.168.1.1"}, "1.2.3.4"},
		{"no trusted proxies", "1.2.3.4:1", "8.8.8.8", "", nil, "1.2.3.4"},
		{"trusted xff first hop", "192.168.1.1:1", "203.0.113.1, 198.51.100.1", "", []string{"192.168.1.1"}, "203.0.113.1"},
		{"trusted real ip", "192.168.1.1:1", "", "203.0.113.9", []string{"192.168.1.1"}, "203.0.113.9"},
		{"trusted no headers", "192.168.1.1:1", "", "", []string{"192.168.1.1"}, "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trusted))
		})
	}
}

func TestMaxBody(t *testing.T) {
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	small := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, small)
	assert.Equal(t, http.StatusOK, w.Code)

	big := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler, mark("outer"), mark("inner")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	RequestLog(log)(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Empty(t, buf.String(), "2xx logs at debug")

	RequestLog(log)(failing).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/fail", nil))
	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "path=/fail")
	assert.Contains(t, out, "status=502")
}
