//go:build !appcore_embedded

package osapi

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"
)

// Dialer resolves a host once, validates the address against its policy and
// pins the result for a TTL so later connections cannot be rebound to a
// different address by DNS.
type Dialer struct {
	resolver *net.Resolver
	onBlock  func(addr, reason string)
	cache    map[string]pinned
	policy   AddressPolicy
	timeout  time.Duration
	ttl      time.Duration
	mu       sync.RWMutex
}

type pinned struct {
	at   time.Time
	addr netip.Addr
}

func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	if ip, ok := d.cached(host); ok {
		return d.dial(ctx, network, ip, port)
	}

	ip, err := d.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	if err := d.policy.Check(ip); err != nil {
		if be, ok := err.(*BlockedError); ok && d.onBlock != nil {
			d.onBlock(address, be.Reason)
		}
		return nil, err
	}
	d.pin(host, ip)
	return d.dial(ctx, network, ip, port)
}

func (d *Dialer) resolve(ctx context.Context, host string) (netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return ip, nil
	}

	resolver := d.resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("DNS lookup failed for %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("no IP addresses found for %q", host)
	}
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), nil
		}
	}
	return addrs[0], nil
}

func (d *Dialer) cached(host string) (netip.Addr, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.cache[host]
	if !ok || time.Since(p.at) >= d.ttl {
		return netip.Addr{}, false
	}
	return p.addr, true
}

func (d *Dialer) pin(host string, ip netip.Addr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache == nil {
		d.cache = make(map[string]pinned)
	}
	d.cache[host] = pinned{addr: ip, at: time.Now()}
}

func (d *Dialer) dial(ctx context.Context, network string, ip netip.Addr, port string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: d.timeout}
	return nd.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}
