package urlvalidation

import (
	"context"
	"errors"
	"net/netip"
	"testing"
)

func staticResolver(addrs ...string) Option {
	return WithResolver(func(context.Context, string) ([]netip.Addr, error) {
		out := make([]netip.Addr, len(addrs))
		for i, a := range addrs {
			out[i] = netip.MustParseAddr(a)
		}
		return out, nil
	})
}

func TestValidateCallbackURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		opts    []Option
		wantErr bool
	}{
		{"public https", "https://hooks.example.com/scribe", []Option{staticResolver("93.184.216.34")}, false},
		{"loopback literal", "http://127.0.0.1:9000/cb", nil, true},
		{"ipv6 loopback", "http://[::1]/cb", nil, true},
		{"mapped loopback", "http://[::ffff:127.0.0.1]/cb", nil, true},
		{"private via dns", "https://internal.example.com", []Option{staticResolver("93.184.216.34", "10.1.2.3")}, true},
		{"metadata service", "http://169.254.169.254/latest", nil, true},
		{"bad scheme", "ftp://example.com/x", nil, true},
		{"no host", "http:///path", nil, true},
		{"private allowed", "http://127.0.0.1:9000/cb", []Option{AllowPrivateIPs()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCallbackURL(context.Background(), tt.url, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCallbackURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestReservedError(t *testing.T) {
	err := ValidateCallbackURL(context.Background(), "http://192.168.1.10/")
	if !errors.Is(err, ErrReservedAddress) {
		t.Fatalf("err = %v, want ErrReservedAddress", err)
	}
}

func TestIsReserved(t *testing.T) {
	if IsReserved(netip.MustParseAddr("8.8.8.8")) {
		t.Error("8.8.8.8 should be public")
	}
	if !IsReserved(netip.MustParseAddr("172.20.0.1")) {
		t.Error("172.20.0.1 should be reserved")
	}
}
