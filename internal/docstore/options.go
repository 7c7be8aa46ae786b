package docstore

import (
	"log/slog"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Option configures a Store.
type Option func(*options)

type options struct {
	fs        FS
	clock     Clock
	logger    *slog.Logger
	metrics   *Metrics
	serialize bool
}

func defaultOptions() options {
	return options{
		fs:        OSFS{},
		clock:     realClock{},
		logger:    slog.Default(),
		serialize: true,
	}
}

// WithFS replaces the file system used for reads and writes.
func WithFS(fs FS) Option {
	return func(o *options) { o.fs = fs }
}

// WithClock injects the clock used for record timestamps.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger used for cold starts and data repairs.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records loads and updates into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Serialized controls whether Update calls on one Store run one at a time.
// It defaults to true, so concurrent updates no longer lose each other's
// changes. Serialized(false) restores the earlier last-writer-wins behavior:
// overlapping updates each clone the same published state and the last
// write wins.
func Serialized(on bool) Option {
	return func(o *options) { o.serialize = on }
}

// Unserialized is shorthand for Serialized(false).
func Unserialized() Option {
	return Serialized(false)
}
