package repository

import (
	"time"

	"github.com/okian/pokerank/pkg/logger"
)

// Option configures a store adapter.
type Option func(*options)

type options struct {
	now                   func() time.Time
	metricsUpdateInterval time.Duration
	logger                logger.Logger
	seed                  uint64
}

func defaultOptions() options {
	return options{
		now:                   time.Now,
		metricsUpdateInterval: 5 * time.Second,
		seed:                  uint64(time.Now().UnixNano()),
	}
}

// WithClock sets the clock used to stamp votes.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPrioritySeed fixes the treap priority source of the in-memory store.
func WithPrioritySeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}
