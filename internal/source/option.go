package source

import (
	"fmt"
	"net/http"
	"time"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultTriggerRetries = 2
)

type config struct {
	httpClient     *http.Client
	header         http.Header
	timeout        time.Duration
	triggerRetries int
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		timeout:        defaultTimeout,
		triggerRetries: defaultTriggerRetries,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithClient sets the underlying HTTP client. Its Timeout is left alone when
// non-zero; otherwise the configured request timeout is applied.
func WithClient(c *http.Client) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.httpClient = c
		}
		return nil
	}
}

// WithTimeout sets the per-request timeout.
//
// Default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		cfg.timeout = d
		return nil
	}
}

// WithTriggerRetries sets how many times a source refresh trigger is resent
// on connection errors or 5xx responses. Dashboard fetches are never retried
// by the client; retry policy for those belongs to the caller.
//
// Default is 2.
func WithTriggerRetries(n int) Option {
	return func(cfg *config) error {
		if n < 0 {
			return fmt.Errorf("trigger retries must be non-negative, got %d", n)
		}
		cfg.triggerRetries = n
		return nil
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(cfg *config) error {
		if cfg.header == nil {
			cfg.header = make(http.Header)
		}
		cfg.header.Add(key, value)
		return nil
	}
}
