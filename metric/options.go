package metric

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/transport"
)

// DefaultPendingCapacity bounds the number of in-flight requests a
// latency metric remembers.
const DefaultPendingCapacity = 4096

type options struct {
	clock    clock.Clock
	logger   *logging.Logger
	capacity int
}

// Option configures a built-in metric.
type Option func(*options)

// WithClock sets the clock used when an event carries no timestamp.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the metric logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCapacity sets the number of pending requests remembered.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock:    clock.New(),
		logger:   logging.NewNopLogger(),
		capacity: DefaultPendingCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// eventTime returns the event timestamp, falling back to the clock.
func (o options) eventTime(ev transport.Event) time.Time {
	if ev.Time.IsZero() {
		return o.clock.Now()
	}
	return ev.Time
}
