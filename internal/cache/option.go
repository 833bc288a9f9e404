package cache

import (
	"context"

	"github.com/jonboulle/clockwork"
)

type config struct {
	clock clockwork.Clock
	ctx   context.Context
}

// Option is a function that sets a value in a config.
type Option func(*config)

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) config {
	cfg := config{
		clock: clockwork.NewRealClock(),
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock sets the clock used for entry timestamps and expiry checks.
// Tests use a clockwork.FakeClock to control time.
func WithClock(c clockwork.Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithContext bounds the lifetime of the store's fetches. Fetches still in
// flight are cancelled when ctx ends.
func WithContext(ctx context.Context) Option {
	return func(cfg *config) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}
