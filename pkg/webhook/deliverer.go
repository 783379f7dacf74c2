// Package webhook posts transcription events to configured callback
// endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/voicetyped/scribe/pkg/events"
	"github.com/voicetyped/scribe/pkg/urlvalidation"
)

// Endpoint is a callback target.
type Endpoint struct {
	URL    string
	Secret string
}

// Config holds delivery settings.
type Config struct {
	MaxAttempts      uint
	Timeout          time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	FailureThreshold uint32
	ResetTimeout     time.Duration
}

// DefaultConfig returns the delivery settings used when none are given.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      5,
		Timeout:          10 * time.Second,
		InitialBackoff:   time.Second,
		MaxBackoff:       5 * time.Minute,
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
	}
}

// StatusError is a non-2xx response from an endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d", e.StatusCode) }

// Deliverer sends signed envelopes with retries. Each endpoint gets its own
// circuit breaker.
type Deliverer struct {
	httpClient   *http.Client
	config       Config
	validateOpts []urlvalidation.Option

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

// NewDeliverer creates a deliverer. Zero fields in cfg take DefaultConfig
// values.
func NewDeliverer(cfg Config, validateOpts ...urlvalidation.Option) *Deliverer {
	d := DefaultConfig()
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = d.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = d.MaxBackoff
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = d.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = d.ResetTimeout
	}
	return &Deliverer{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:       cfg,
		validateOpts: validateOpts,
		breakers:     make(map[string]*gobreaker.CircuitBreaker[int]),
	}
}

func (d *Deliverer) breaker(url string) *gobreaker.CircuitBreaker[int] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := d.breakers[url]; ok {
		return cb
	}
	threshold := d.config.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        url,
		MaxRequests: 1,
		Timeout:     d.config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool { return err == nil || isPermanentStatus(err) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("webhook: circuit breaker state change",
				slog.String("url", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	d.breakers[url] = cb
	return cb
}

// Deliver posts env to ep, retrying transient failures. It returns the last
// error once attempts are exhausted.
func (d *Deliverer) Deliver(ctx context.Context, ep Endpoint, env events.Envelope) error {
	if err := urlvalidation.ValidateCallbackURL(ctx, ep.URL, d.validateOpts...); err != nil {
		return fmt.Errorf("webhook %s: %w", ep.URL, err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	cb := d.breaker(ep.URL)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.config.InitialBackoff
	bo.MaxInterval = d.config.MaxBackoff

	attempt := 0
	_, err = backoff.Retry(ctx, func() (int, error) {
		attempt++
		code, err := cb.Execute(func() (int, error) {
			return d.post(ctx, ep, env, body)
		})
		if isPermanentStatus(err) {
			return code, backoff.Permanent(err)
		}
		if err != nil {
			slog.WarnContext(ctx, "webhook: delivery attempt failed",
				slog.String("url", ep.URL), slog.String("event_id", env.ID),
				slog.Int("attempt", attempt), slog.String("error", err.Error()))
		}
		return code, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(d.config.MaxAttempts))
	if err != nil {
		return fmt.Errorf("webhook %s: %w", ep.URL, err)
	}
	slog.DebugContext(ctx, "webhook: delivered",
		slog.String("url", ep.URL), slog.String("event_id", env.ID), slog.Int("attempts", attempt))
	return nil
}

// isPermanentStatus reports a client error that retrying cannot fix.
func isPermanentStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 &&
		se.StatusCode != http.StatusTooManyRequests
}

func (d *Deliverer) post(ctx context.Context, ep Endpoint, env events.Envelope, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Scribe-Event", string(env.Type))
	req.Header.Set("X-Scribe-Delivery", env.ID)
	if sig := Sign(ep.Secret, body); sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain for connection reuse.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}
