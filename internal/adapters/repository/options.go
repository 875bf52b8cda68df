package repository

import "time"

// Default store configuration constants.
const (
	defaultBusyTimeout = 5 * time.Second
	defaultSQLitePath  = "history.db"
)

type options struct {
	now         func() time.Time
	busyTimeout time.Duration
}

func defaultOptions() options {
	return options{
		now:         time.Now,
		busyTimeout: defaultBusyTimeout,
	}
}

// Option applies a configuration option to a Store.
type Option func(*options)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}
