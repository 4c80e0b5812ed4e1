package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/metrics"
)

// FetchConfig tunes the shared HTTP client used by all adapters.
type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int    `yaml:"max_retries,omitempty"`     // Default: 3
	MinIntervalMs  int    `yaml:"min_interval_ms,omitempty"` // Default: 500
	BackoffBaseMs  int    `yaml:"backoff_base_ms,omitempty"` // Default: 500
	JitterMs       int    `yaml:"jitter_ms,omitempty"`       // Default: 100
	UserAgent      string `yaml:"user_agent,omitempty"`
}

func (c *FetchConfig) applyDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MinIntervalMs == 0 {
		c.MinIntervalMs = 500
	}
	if c.BackoffBaseMs == 0 {
		c.BackoffBaseMs = 500
	}
	if c.JitterMs == 0 {
		c.JitterMs = 100
	}
	if c.UserAgent == "" {
		c.UserAgent = "grant-discovery/1.0 (+nonprofit funding aggregator)"
	}
}

// Client is the single rate-limited fetch layer every adapter goes through.
// It enforces a minimum inter-request interval process-wide and retries
// transient failures with exponential backoff plus jitter. The interval
// clock is the only shared mutable state and is guarded by mu.
type Client struct {
	HTTP   *http.Client
	Config FetchConfig

	mu          sync.Mutex
	nextAllowed time.Time
}

// NewClient builds the shared fetch client. A timeout is always set; a hung
// provider can never block an aggregation run past it.
func NewClient(config FetchConfig) *Client {
	config.applyDefaults()
	return &Client{
		HTTP: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		Config: config,
	}
}

// shouldRetry reports whether an attempt outcome warrants another try.
func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return true
		}
		return false
	}
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// waitTurn blocks until the process-wide minimum interval has elapsed since
// the previous request, honoring ctx cancellation.
func (c *Client) waitTurn(ctx context.Context) error {
	interval := time.Duration(c.Config.MinIntervalMs) * time.Millisecond

	c.mu.Lock()
	now := time.Now()
	wait := c.nextAllowed.Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.nextAllowed = now.Add(wait + interval)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Do executes one logical request with rate limiting and retries. newReq is
// called per attempt because request bodies are single-use. Non-retryable
// 4xx responses are returned to the caller for classification; a nil error
// with a non-2xx status is the adapter's problem to interpret.
func (c *Client) Do(ctx context.Context, source string, newReq func() (*http.Request, error)) (*http.Response, error) {
	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.FetchRetries.WithLabelValues(source).Inc()
			backoff := time.Duration(c.Config.BackoffBaseMs*(1<<uint(attempt-1))) * time.Millisecond
			jitter := time.Duration(rand.Intn(c.Config.JitterMs+1)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.Config.UserAgent)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, 0) {
				metrics.FetchAttempts.WithLabelValues(source, "timeout").Inc()
				continue
			}
			metrics.FetchAttempts.WithLabelValues(source, "error").Inc()
			return nil, fmt.Errorf("executing request: %w", err)
		}

		if shouldRetry(nil, resp.StatusCode) {
			resp.Body.Close()
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			metrics.FetchAttempts.WithLabelValues(source, "retryable_status").Inc()
			continue
		}

		metrics.FetchAttempts.WithLabelValues(source, "ok").Inc()
		return resp, nil
	}

	metrics.FetchAttempts.WithLabelValues(source, "exhausted").Inc()
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
