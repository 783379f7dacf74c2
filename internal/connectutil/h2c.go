package connectutil

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// maxFrameSize matches the large audio fragments clients stream.
const maxFrameSize = 1 << 20

// H2CHandler wraps an http.Handler with h2c support for unencrypted HTTP/2,
// so streamed uploads don't need TLS.
func H2CHandler(handler http.Handler) http.Handler {
	return h2c.NewHandler(handler, &http2.Server{
		MaxConcurrentStreams: 250,
		MaxReadFrameSize:     maxFrameSize,
		IdleTimeout:          2 * time.Minute,
	})
}

// H2CClient returns an HTTP client that speaks HTTP/2 over plain TCP, the
// counterpart of H2CHandler.
func H2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP:        true,
			MaxReadFrameSize: maxFrameSize,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
