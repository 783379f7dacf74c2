// Package restutil holds the HTTP plumbing shared by the hosted engine
// backends.
package restutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client sends requests through a circuit breaker so an unavailable
// provider fails fast instead of stalling every batch on timeouts.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a client. The breaker opens after failureThreshold
// consecutive failures and half-opens after resetTimeout.
func NewClient(name string, timeout time.Duration, failureThreshold uint32, resetTimeout time.Duration) *Client {
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     resetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failureThreshold
			},
			// Client errors mean a bad request, not an unhealthy provider.
			IsSuccessful: func(err error) bool {
				var he *HTTPError
				if errors.As(err, &he) {
					return he.StatusCode < 500 && he.StatusCode != http.StatusTooManyRequests
				}
				return err == nil
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("restutil: circuit breaker state change",
					"backend", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// DoRaw sends body and returns the full response body.
func (c *Client) DoRaw(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})
}

// DoJSON sends body as JSON and decodes the JSON response into dest.
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, body any, dest any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	if body != nil {
		h["Content-Type"] = "application/json"
	}

	data, err := c.DoRaw(ctx, method, url, h, payload)
	if err != nil {
		return err
	}
	if dest != nil {
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Lookup returns the first non-empty config value among keys.
func Lookup(config map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := config[k]; v != "" {
			return v
		}
	}
	return ""
}
