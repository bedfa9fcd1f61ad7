// Package httpclient builds pooled HTTP clients shared by the model backends
// and the agent RPC client.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"a2a-router/internal/infra/config"
)

// Pool defaults suit a handful of upstream hosts with high concurrency.
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second

	DefaultConnTimeout = 30 * time.Second
	DefaultRespTimeout = 120 * time.Second
)

// NewPooledTransport creates an http.Transport with connection pooling.
// Zero values fall back to the package defaults.
func NewPooledTransport(connTimeout, respTimeout time.Duration, pool config.PoolConfig) *http.Transport {
	if connTimeout <= 0 {
		connTimeout = DefaultConnTimeout
	}
	if respTimeout <= 0 {
		respTimeout = DefaultRespTimeout
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       idleTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// New returns a client whose overall timeout is total, or connect plus
// response timeout when total is zero.
func New(connTimeout, respTimeout, total time.Duration, pool config.PoolConfig) *http.Client {
	tr := NewPooledTransport(connTimeout, respTimeout, pool)
	if total <= 0 {
		total = tr.ResponseHeaderTimeout + DefaultConnTimeout
		if connTimeout > 0 {
			total = tr.ResponseHeaderTimeout + connTimeout
		}
	}
	return &http.Client{Transport: tr, Timeout: total}
}
