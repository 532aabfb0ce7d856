package telemetry

import (
	"errors"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/metric"
	"github.com/thomasdelaet/kad-telemetry/metrics"
	"github.com/thomasdelaet/kad-telemetry/persistence"
	"github.com/thomasdelaet/kad-telemetry/tracing"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// ErrNilBase is returned when a decorator has no base constructor.
var ErrNilBase = errors.New("nil base transport constructor")

// Decorator produces telemetry-enabled transports from a base constructor.
type Decorator struct {
	// Defaults is the metric set used by transports whose configuration
	// names no metrics. It is read at the first open of each transport.
	Defaults []metric.Factory

	base    transport.Constructor
	config  Config
	logger  *logging.Logger
	metrics metrics.Metrics
	tracer  *tracing.Tracer
}

// DecoratorOption configures a Decorator.
type DecoratorOption func(*Decorator)

// WithLogger sets the logger of the decorator and of the transports,
// handles and default metrics it creates.
func WithLogger(l *logging.Logger) DecoratorOption {
	return func(d *Decorator) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the self-instrumentation sink.
func WithMetrics(m metrics.Metrics) DecoratorOption {
	return func(d *Decorator) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracer sets the tracer used for open, send and release spans.
func WithTracer(t *tracing.Tracer) DecoratorOption {
	return func(d *Decorator) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithConfig sets the telemetry configuration used by Constructor.
func WithConfig(cfg Config) DecoratorOption {
	return func(d *Decorator) {
		d.config = cfg
	}
}

// Decorate returns a new decorator over base. Every call yields an
// independent decorator with its own Defaults.
func Decorate(base transport.Constructor, opts ...DecoratorOption) *Decorator {
	d := &Decorator{
		base:    base,
		logger:  logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
		tracer:  tracing.NewNopTracer(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("telemetry")
	d.Defaults = DefaultMetrics(metric.WithLogger(d.logger.WithComponent("metric")))
	return d
}

// New constructs a telemetry-enabled transport. The persistence handle is
// opened first and never fails; the base constructor then receives
// opts.Transport unchanged and its error is returned as is.
func (d *Decorator) New(contact types.Contact, opts Options) (*Transport, error) {
	if d.base == nil {
		return nil, types.WrapConfigurationError(ErrNilBase, "constructing transport")
	}

	cfg := opts.Telemetry
	handle := persistence.Open(cfg.Filename,
		persistence.WithLogger(d.logger),
		persistence.WithMetrics(d.metrics),
		persistence.WithQueueSize(cfg.QueueSize),
	)

	base, err := d.base(contact, opts.Transport)
	if err != nil {
		_ = handle.Close()
		return nil, err
	}

	return &Transport{
		base:      base,
		handle:    handle,
		recorder:  &recorder{handle: handle, metrics: d.metrics},
		cfg:       cfg,
		decorator: d,
		logger:    d.logger.WithContact(base.Contact()),
		metrics:   d.metrics,
		tracer:    d.tracer,
	}, nil
}

// Constructor adapts the decorator into a plain transport constructor
// using the WithConfig telemetry configuration. The result can be
// decorated again.
func (d *Decorator) Constructor() transport.Constructor {
	return func(contact types.Contact, opts transport.Options) (transport.Transport, error) {
		t, err := d.New(contact, Options{Transport: opts, Telemetry: d.config})
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}
