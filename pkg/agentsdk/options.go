package agentsdk

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures an Agent.
type Option func(*Agent)

// WithAddr sets the listen address, e.g. ":18001".
func WithAddr(addr string) Option {
	return func(a *Agent) { a.addr = addr }
}

// WithRouter enables registration with the router at routerURL.
func WithRouter(routerURL string) Option {
	return func(a *Agent) { a.routerURL = routerURL }
}

// WithRegistration bounds registration retries. Delays double from backoff.
func WithRegistration(attempts int, backoff time.Duration) Option {
	return func(a *Agent) {
		a.attempts = attempts
		a.backoff = backoff
	}
}

// WithHTTPClient sets the client used for registration.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Agent) { a.http = hc }
}

// WithAdvertiser announces the agent on the LAN under instance.
func WithAdvertiser(adv Advertiser, instance string) Option {
	return func(a *Agent) {
		a.advertiser = adv
		a.instance = instance
	}
}

// WithMiddleware wraps the agent's HTTP handler; the first one is outermost.
func WithMiddleware(mws ...func(http.Handler) http.Handler) Option {
	return func(a *Agent) { a.mws = append(a.mws, mws...) }
}

// WithLogger sets a custom slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}
