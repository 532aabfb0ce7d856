package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/metric"
	"github.com/thomasdelaet/kad-telemetry/metrics"
	"github.com/thomasdelaet/kad-telemetry/persistence"
	"github.com/thomasdelaet/kad-telemetry/tracing"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// Transport is a telemetry-enabled transport. It forwards every operation
// to its base; Open additionally registers the metric hooks once.
type Transport struct {
	base      transport.Transport
	handle    *persistence.Handle
	recorder  metric.Recorder
	cfg       Config
	decorator *Decorator

	logger  *logging.Logger
	metrics metrics.Metrics
	tracer  *tracing.Tracer

	registered bool
	regErr     error
	hookCount  int
	instances  []metric.Metric
	mu         sync.Mutex
}

// binding is a validated hook ready to subscribe.
type binding struct {
	metric  metric.Metric
	hook    metric.Hook
	handler transport.Handler
}

// Open registers the metric hooks on the first call and opens the base.
// A configuration error is returned before the base open is attempted;
// base errors are returned unchanged.
func (t *Transport) Open() error {
	_, span := t.tracer.StartOpen(context.Background(), t.base.Contact(), t.handle.Locator())

	if err := t.registerHooks(); err != nil {
		t.metrics.IncConfigurationErrors()
		t.logger.Error("telemetry configuration rejected", logging.Error(err))
		tracing.End(span, err)
		return err
	}

	err := t.base.Open()
	tracing.End(span, err)
	return err
}

// registerHooks instantiates the effective metrics, validates all of their
// hooks and only then subscribes them. Registration happens at most once:
// a failure before any hook is subscribed can be retried, a failure after
// that is final and returned by every later call.
func (t *Transport) registerHooks() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.registered {
		return t.regErr
	}

	factories := EffectiveMetrics(t.cfg, t.decorator.Defaults)
	instances := make([]metric.Metric, 0, len(factories))
	bindings := make([]binding, 0, len(factories)*2)

	for i, f := range factories {
		m, err := instantiate(i, f)
		if err != nil {
			return err
		}
		for _, h := range m.Hooks() {
			if err := h.Validate(); err != nil {
				return fmt.Errorf("metric %s: %w", m.Name(), err)
			}
			handler := h.Handler(m, t.recorder)
			if handler == nil {
				return types.WrapConfigurationError(nil, "metric %s: hook %s %s does not apply to this metric", m.Name(), h.Trigger, h.Event)
			}
			bindings = append(bindings, binding{metric: m, hook: h, handler: handler})
		}
		instances = append(instances, m)
	}

	for i, b := range bindings {
		if err := b.hook.Trigger.Subscribe(t.base, b.hook.Event, b.handler); err != nil {
			err = types.WrapConfigurationError(err, "metric %s: subscribing %s %s", b.metric.Name(), b.hook.Trigger, b.hook.Event)
			if i > 0 {
				// Earlier hooks stay attached to the base and cannot be removed.
				t.registered = true
				t.regErr = err
			}
			return err
		}
		t.metrics.IncHookRegistrations(b.metric.Name(), b.hook.Event.String())
		t.logger.Debug("hook registered",
			logging.Metric(b.metric.Name()),
			logging.Trigger(b.hook.Trigger.String()),
			logging.Event(b.hook.Event.String()),
		)
	}

	t.registered = true
	t.hookCount = len(bindings)
	t.instances = instances

	t.logger.Info("telemetry hooks registered",
		logging.Count(len(bindings)),
		logging.Locator(t.handle.Locator()),
	)
	return nil
}

func instantiate(i int, f metric.Factory) (metric.Metric, error) {
	if f == nil {
		return nil, types.WrapConfigurationError(nil, "metric %d has no factory", i)
	}
	m, err := f()
	if err != nil {
		if errors.Is(err, types.ErrConfiguration) {
			return nil, err
		}
		return nil, types.WrapConfigurationError(err, "creating metric %d", i)
	}
	if m == nil {
		return nil, types.WrapConfigurationError(nil, "metric %d factory returned nil", i)
	}
	if err := types.ValidateMetricName(m.Name()); err != nil {
		return nil, types.WrapConfigurationError(err, "metric %d", i)
	}
	return m, nil
}

// Send forwards to the base transport.
func (t *Transport) Send(ctx context.Context, to types.Contact, msg *transport.Message) error {
	var method, id string
	if msg != nil {
		method, id = msg.Method, msg.ID
	}
	ctx, span := t.tracer.StartSend(ctx, to, method, id)
	err := t.base.Send(ctx, to, msg)
	tracing.End(span, err)
	return err
}

// Close forwards to the base transport. The persistence handle stays open
// so the transport can be reopened; see Release.
func (t *Transport) Close() error {
	return t.base.Close()
}

// On forwards to the base transport.
func (t *Transport) On(event transport.EventName, handler transport.Handler) error {
	return t.base.On(event, handler)
}

// Once forwards to the base transport.
func (t *Transport) Once(event transport.EventName, handler transport.Handler) error {
	return t.base.Once(event, handler)
}

// Contact forwards to the base transport.
func (t *Transport) Contact() types.Contact {
	return t.base.Contact()
}

// Unwrap returns the base transport.
func (t *Transport) Unwrap() transport.Transport {
	return t.base
}

// Handle returns the persistence handle shared by the metrics.
func (t *Transport) Handle() *persistence.Handle {
	return t.handle
}

// HookCount returns the number of hooks registered; zero before the
// first successful registration.
func (t *Transport) HookCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hookCount
}

// Metrics returns the metric instances registered on this transport.
func (t *Transport) Metrics() []metric.Metric {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]metric.Metric(nil), t.instances...)
}

// Flush waits until every sample recorded so far is persisted.
func (t *Transport) Flush(ctx context.Context) error {
	return t.handle.Flush(ctx)
}

// Release closes the base transport if it is open, then drains and closes
// the persistence handle. The transport cannot be used afterwards.
func (t *Transport) Release() error {
	_, span := t.tracer.StartClose(context.Background(), t.base.Contact())

	var err error
	if cerr := t.base.Close(); cerr != nil && !errors.Is(cerr, transport.ErrNotOpen) && !errors.Is(cerr, transport.ErrClosed) {
		err = multierr.Append(err, cerr)
	}
	err = multierr.Append(err, t.handle.Close())

	tracing.End(span, err)
	return err
}

// recorder feeds samples to the persistence handle and mirrors latency
// samples into the latency histogram.
type recorder struct {
	handle  *persistence.Handle
	metrics metrics.Metrics
}

func (r *recorder) Record(name string, s types.Sample) error {
	if name == metric.LatencyName {
		r.metrics.ObserveLatency(millis(s.Value))
	}
	return r.handle.Record(name, s)
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Verify Transport implements transport.Transport and recorder
// implements metric.Recorder.
var (
	_ transport.Transport = (*Transport)(nil)
	_ metric.Recorder     = (*recorder)(nil)
	_ metric.Recorder     = (*persistence.Handle)(nil)
)
