// Package telemetry decorates RPC transports with metrics: a decorated
// transport behaves exactly like its base while every hook of its
// configured metrics records samples to a persistence handle.
package telemetry

import (
	"github.com/thomasdelaet/kad-telemetry/config"
	"github.com/thomasdelaet/kad-telemetry/metric"
	"github.com/thomasdelaet/kad-telemetry/transport"
)

// Config is the telemetry configuration of one transport instance.
// The zero value selects the decorator defaults and no persistence.
type Config struct {
	// Metrics lists the metrics to register. Empty selects the
	// decorator defaults.
	Metrics []metric.Factory

	// Filename is the persistence locator.
	Filename string

	// QueueSize bounds the persistence write queue. Zero selects the
	// persistence default.
	QueueSize int
}

// Options is the option bag accepted by a decorated constructor.
type Options struct {
	// Transport is passed to the base constructor unchanged.
	Transport transport.Options

	// Telemetry configures metrics and persistence.
	Telemetry Config
}

// DefaultMetrics returns a fresh copy of the default metric set:
// latency and availability.
func DefaultMetrics(opts ...metric.Option) []metric.Factory {
	return []metric.Factory{
		metric.Latency(opts...),
		metric.Availability(opts...),
	}
}

// EffectiveMetrics returns the metrics a transport registers: the
// configured ones, or the defaults when none are configured. Neither
// argument is modified and the result never aliases them.
func EffectiveMetrics(cfg Config, defaults []metric.Factory) []metric.Factory {
	src := cfg.Metrics
	if len(src) == 0 {
		src = defaults
	}
	out := make([]metric.Factory, len(src))
	copy(out, src)
	return out
}

// ConfigFromFile resolves the telemetry section of a node config. Metric
// names are looked up in the metric registry and built with opts; unknown
// names fail with types.ErrConfiguration.
func ConfigFromFile(c config.TelemetryConfig, opts ...metric.Option) (Config, error) {
	cfg := Config{
		Filename:  c.Filename,
		QueueSize: c.QueueSize,
	}
	if len(c.Metrics) == 0 {
		return cfg, nil
	}

	factories, err := metric.Resolve(c.Metrics, opts...)
	if err != nil {
		return Config{}, err
	}
	cfg.Metrics = factories
	return cfg, nil
}
