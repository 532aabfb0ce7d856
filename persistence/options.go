package persistence

import (
	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/metrics"
)

// DefaultQueueSize is the default number of samples buffered for the writer.
const DefaultQueueSize = 1024

// Option configures a Handle.
type Option func(*handleOptions)

type handleOptions struct {
	logger    *logging.Logger
	metrics   metrics.Metrics
	queueSize int
	readOnly  bool
	sync      bool
	store     Store
}

func defaultHandleOptions() *handleOptions {
	return &handleOptions{
		logger:    logging.NewNopLogger(),
		metrics:   metrics.NewNopMetrics(),
		queueSize: DefaultQueueSize,
	}
}

// WithLogger sets the logger used for storage errors.
func WithLogger(l *logging.Logger) Option {
	return func(o *handleOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the instrumentation sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(o *handleOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithQueueSize sets the write queue capacity. Non-positive sizes keep
// the default.
func WithQueueSize(n int) Option {
	return func(o *handleOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithReadOnly opens the backend without write access. Record on a
// read-only handle reports a storage error.
func WithReadOnly() Option {
	return func(o *handleOptions) {
		o.readOnly = true
	}
}

// WithSync flushes every write to disk.
func WithSync() Option {
	return func(o *handleOptions) {
		o.sync = true
	}
}

// WithStore uses the given backend instead of opening the locator.
// The handle takes ownership and closes it.
func WithStore(s Store) Option {
	return func(o *handleOptions) {
		o.store = s
	}
}
