package metric

import (
	"errors"
	"sort"
	"sync"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// Registry errors.
var (
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrDuplicateMetric = errors.New("metric already registered")
	ErrNilFactory      = errors.New("nil metric factory")
	ErrEmptyMetricName = errors.New("empty metric name")
)

// Builder creates a factory configured with options.
type Builder func(opts ...Option) Factory

var registry = struct {
	builders map[string]Builder
	mu       sync.RWMutex
}{
	builders: map[string]Builder{
		LatencyName:      Latency,
		AvailabilityName: Availability,
		ReliabilityName:  Reliability,
		UptimeName:       Uptime,
	},
}

// Register makes a metric factory available by name. Options passed to
// Lookup and Resolve do not apply to it.
func Register(name string, f Factory) error {
	if f == nil {
		return types.WrapConfigurationError(ErrNilFactory, "registering metric %s", name)
	}
	return RegisterBuilder(name, func(...Option) Factory { return f })
}

// RegisterBuilder makes a metric available by name, built with the
// options given at lookup.
func RegisterBuilder(name string, b Builder) error {
	if name == "" {
		return types.WrapConfigurationError(ErrEmptyMetricName, "registering metric")
	}
	if b == nil {
		return types.WrapConfigurationError(ErrNilFactory, "registering metric %s", name)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.builders[name]; exists {
		return types.WrapConfigurationError(ErrDuplicateMetric, "registering metric %s", name)
	}
	registry.builders[name] = b
	return nil
}

// Lookup returns the factory registered under name, built with opts.
func Lookup(name string, opts ...Option) (Factory, error) {
	registry.mu.RLock()
	b, ok := registry.builders[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, types.WrapConfigurationError(ErrUnknownMetric, "looking up metric %q", name)
	}
	f := b(opts...)
	if f == nil {
		return nil, types.WrapConfigurationError(ErrNilFactory, "looking up metric %q", name)
	}
	return f, nil
}

// Resolve looks up every name in order, building each with opts.
func Resolve(names []string, opts ...Option) ([]Factory, error) {
	factories := make([]Factory, 0, len(names))
	for _, name := range names {
		f, err := Lookup(name, opts...)
		if err != nil {
			return nil, err
		}
		factories = append(factories, f)
	}
	return factories, nil
}

// Names returns the registered metric names in sorted order.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.builders))
	for name := range registry.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
