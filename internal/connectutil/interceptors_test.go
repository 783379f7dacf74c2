package connectutil

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
)

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	want := connect.NewError(connect.CodeInvalidArgument, errors.New("bad input"))
	next := connect.UnaryFunc(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, want
	})

	wrapped := NewLoggingInterceptor().WrapUnary(next)
	_, err := wrapped(context.Background(), connect.NewRequest(&struct{}{}))
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestDefaultOptions(t *testing.T) {
	if opts := DefaultOptions(200 << 20); len(opts) != 2 {
		t.Fatalf("options = %d, want 2", len(opts))
	}
}

func TestDefaultClientOptions(t *testing.T) {
	if opts := DefaultClientOptions(); len(opts) == 0 {
		t.Fatal("expected non-empty client options")
	}
}

func TestH2CClientUsesHTTP2Transport(t *testing.T) {
	if c := H2CClient(); c.Transport == nil {
		t.Fatal("expected custom transport")
	}
}
