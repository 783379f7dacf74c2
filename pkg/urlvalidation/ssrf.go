// Package urlvalidation rejects outbound callback targets that resolve to
// internal address space.
package urlvalidation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ErrReservedAddress is returned when a host resolves into a reserved range.
var ErrReservedAddress = errors.New("address is private or reserved")

// Option configures URL validation behavior.
type Option func(*validationConfig)

type validationConfig struct {
	allowPrivate bool
	resolver     func(ctx context.Context, host string) ([]netip.Addr, error)
}

// AllowPrivateIPs disables the reserved range check. Use only in tests or
// for callbacks inside a trusted network.
func AllowPrivateIPs() Option {
	return func(c *validationConfig) { c.allowPrivate = true }
}

// WithResolver replaces DNS resolution.
func WithResolver(fn func(ctx context.Context, host string) ([]netip.Addr, error)) Option {
	return func(c *validationConfig) { c.resolver = fn }
}

var reserved = mustPrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10", // CGN
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, len(cidrs))
	for i, c := range cidrs {
		out[i] = netip.MustParsePrefix(c)
	}
	return out
}

// IsReserved reports whether addr is loopback, private, link-local or in
// any other range that must not receive outbound callbacks.
func IsReserved(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range reserved {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func lookup(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// ValidateCallbackURL checks that rawURL is an absolute http(s) URL whose
// host does not resolve into reserved address space.
func ValidateCallbackURL(ctx context.Context, rawURL string, opts ...Option) error {
	cfg := validationConfig{resolver: lookup}
	for _, opt := range opts {
		opt(&cfg)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "https" && scheme != "http" {
		return fmt.Errorf("URL scheme %q not allowed; use http or https", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("URL must have a hostname")
	}
	if cfg.allowPrivate {
		return nil
	}

	var addrs []netip.Addr
	if a, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{a}
	} else if addrs, err = cfg.resolver(ctx, host); err != nil {
		return fmt.Errorf("cannot resolve hostname %q: %w", host, err)
	}
	for _, a := range addrs {
		if IsReserved(a) {
			return fmt.Errorf("%s resolves to %s: %w", host, a, ErrReservedAddress)
		}
	}
	return nil
}
