package server

import (
	"log/slog"
	"time"

	"github.com/getmockd/stubby/pkg/control"
)

// Default timeouts.
const (
	DefaultDrainTimeout = 30 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 0 // disabled, stub delays are unbounded
)

type options struct {
	log          *slog.Logger
	matcher      control.Matcher
	store        control.StubStore
	version      string
	drainTimeout time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option configures Start.
type Option func(*options)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMatcher sets the collaborator that answers non-control requests.
func WithMatcher(m control.Matcher) Option {
	return func(o *options) {
		o.matcher = m
	}
}

// WithStore sets the collaborator behind /_control/responses and /_control/requests.
func WithStore(s control.StubStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithVersion overrides the version reported by /_control/version.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithDrainTimeout bounds how long in-flight requests may take to finish
// once shutdown starts.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.drainTimeout = d
		}
	}
}

// WithReadTimeout sets http.Server.ReadTimeout. Zero disables it.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// WithWriteTimeout sets http.Server.WriteTimeout. Zero disables it.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}
