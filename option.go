package reactor

import (
	"time"

	"github.com/go-logr/logr"
)

type options struct {
	logger      logr.Logger
	pollTimeout time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:      logr.Discard(),
		pollTimeout: time.Second,
	}
}

type Option func(opts *options)

// WithLogger injects the logger used by the reactor and every component it
// constructs. Defaults to a discarding logger so tests stay silent.
func WithLogger(logger logr.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithPollTimeout bounds each wait of the event loop. Defaults to one second;
// shorter values make Stop observed faster at the cost of more idle wakeups.
func WithPollTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.pollTimeout = d
	}
}
