// Package metric defines pluggable telemetry metrics: units that declare
// which transport events they listen to and turn those events into samples.
package metric

import (
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// Trigger selects the subscription method used for a hook.
type Trigger string

// Triggers.
const (
	// TriggerOn subscribes a persistent listener.
	TriggerOn Trigger = "on"

	// TriggerOnce subscribes a one-shot listener.
	TriggerOnce Trigger = "once"
)

// IsValid returns true if the trigger is a known subscription method.
func (t Trigger) IsValid() bool {
	return t == TriggerOn || t == TriggerOnce
}

// String returns the trigger name.
func (t Trigger) String() string {
	return string(t)
}

// Subscriber is the event subscription surface of a transport.
type Subscriber interface {
	On(event transport.EventName, handler transport.Handler) error
	Once(event transport.EventName, handler transport.Handler) error
}

// Subscribe registers handler on s with the subscription method named by
// the trigger. Unknown triggers fail with types.ErrConfiguration.
func (t Trigger) Subscribe(s Subscriber, event transport.EventName, handler transport.Handler) error {
	switch t {
	case TriggerOn:
		return s.On(event, handler)
	case TriggerOnce:
		return s.Once(event, handler)
	default:
		return types.WrapConfigurationError(nil, "unknown trigger %q", string(t))
	}
}

// Recorder receives the samples produced by metrics.
// Implementations must not block.
type Recorder interface {
	Record(metricName string, s types.Sample) error
}

// Metric is a telemetry unit. Instances are created fresh for every
// decorated transport and must not perform I/O on construction.
type Metric interface {
	// Name identifies the metric in persisted samples.
	Name() string

	// Hooks declares the events the metric listens to.
	Hooks() []Hook
}

// HandlerFactory produces the event handler of a hook, bound to a metric
// instance and the recorder shared by all metrics of a transport.
type HandlerFactory func(m Metric, rec Recorder) transport.Handler

// Hook binds a transport event to a metric handler.
type Hook struct {
	Trigger Trigger
	Event   transport.EventName
	Handler HandlerFactory
}

// Validate checks the hook declaration. Errors wrap types.ErrConfiguration.
func (h Hook) Validate() error {
	if !h.Trigger.IsValid() {
		return types.WrapConfigurationError(nil, "unknown trigger %q", string(h.Trigger))
	}
	if !h.Event.IsValid() {
		return types.WrapConfigurationError(nil, "unknown event %q", string(h.Event))
	}
	if h.Handler == nil {
		return types.WrapConfigurationError(nil, "hook %s %s has no handler", h.Trigger, h.Event)
	}
	return nil
}

// Factory creates a metric instance.
type Factory func() (Metric, error)

// HookCount returns the number of hooks declared by the metrics the
// factories produce.
func HookCount(factories []Factory) (int, error) {
	total := 0
	for _, f := range factories {
		m, err := f()
		if err != nil {
			return 0, err
		}
		total += len(m.Hooks())
	}
	return total, nil
}

// bind adapts a typed event function into a HandlerFactory. It yields a nil
// handler when the metric is not of type M.
func bind[M Metric](fn func(m M, rec Recorder, ev transport.Event)) HandlerFactory {
	return func(m Metric, rec Recorder) transport.Handler {
		typed, ok := m.(M)
		if !ok || rec == nil {
			return nil
		}
		return func(ev transport.Event) {
			fn(typed, rec, ev)
		}
	}
}
