//go:build !appcore_embedded

package osapi

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// Net is the outbound network facet. Every connection, including those made
// by the HTTP client, goes through the validating Dialer.
type Net struct {
	dialer    *Dialer
	transport *http.Transport
	client    *http.Client
}

type netConfig struct {
	policy     AddressPolicy
	resolver   *net.Resolver
	timeout    time.Duration
	ttl        time.Duration
	maxRetries int
	initial    time.Duration
	maxBackoff time.Duration
}

// NetOption configures the network facet.
type NetOption func(*netConfig)

// WithAddressPolicy replaces the default policy, which blocks private and
// loopback destinations.
func WithAddressPolicy(p AddressPolicy) NetOption {
	return func(c *netConfig) { c.policy = p }
}

// WithResolver sets a custom DNS resolver.
func WithResolver(r *net.Resolver) NetOption {
	return func(c *netConfig) { c.resolver = r }
}

// WithDialTimeout sets the connection timeout. Default 30s.
func WithDialTimeout(d time.Duration) NetOption {
	return func(c *netConfig) { c.timeout = d }
}

// WithPinTTL sets how long a resolved address stays pinned. Default 5m.
func WithPinTTL(d time.Duration) NetOption {
	return func(c *netConfig) { c.ttl = d }
}

// WithRetry configures HTTP retries. maxRetries of zero disables them.
func WithRetry(maxRetries int, initial, maxBackoff time.Duration) NetOption {
	return func(c *netConfig) {
		c.maxRetries, c.initial, c.maxBackoff = maxRetries, initial, maxBackoff
	}
}

func newNet(diag diagnostics.Emitter, opts ...NetOption) *Net {
	cfg := netConfig{
		timeout:    30 * time.Second,
		ttl:        5 * time.Minute,
		maxRetries: 3,
		initial:    time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dialer{
		resolver: cfg.resolver,
		policy:   cfg.policy,
		timeout:  cfg.timeout,
		ttl:      cfg.ttl,
		onBlock: func(addr, reason string) {
			diag.Warn(context.Background(), "outbound connection blocked", "addr", addr, "reason", reason)
		},
	}

	tr := &http.Transport{
		DialContext:         d.DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	var rt http.RoundTripper = tr
	if cfg.maxRetries > 0 {
		rt = &retryTransport{
			base:       tr,
			maxRetries: cfg.maxRetries,
			initial:    cfg.initial,
			maxBackoff: cfg.maxBackoff,
			onRetry: func(req *http.Request, attempt int, wait time.Duration, status int) {
				diag.Debug(req.Context(), "retrying request",
					"url", redactURL(req.URL), "attempt", attempt, "wait", wait, "status", status)
			},
		}
	}

	return &Net{dialer: d, transport: tr, client: &http.Client{Transport: rt}}
}

// DialContext opens a connection subject to the address policy.
func (n *Net) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return n.dialer.DialContext(ctx, network, address)
}

// HTTPClient returns the shared client. Callers must not replace its transport.
func (n *Net) HTTPClient() *http.Client { return n.client }

func (n *Net) close() { n.transport.CloseIdleConnections() }
