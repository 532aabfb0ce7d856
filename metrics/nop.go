package metrics

import (
	"time"
)

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// Sample metrics (no-op)

func (m *NopMetrics) IncSamplesRecorded(metric string)                   {}
func (m *NopMetrics) IncSamplesDropped(metric, reason string)            {}
func (m *NopMetrics) SetLastValue(metric, contact string, value float64) {}
func (m *NopMetrics) ObserveLatency(latency time.Duration)               {}

// Storage metrics (no-op)

func (m *NopMetrics) IncStorageErrors(op string) {}
func (m *NopMetrics) SetQueueDepth(depth int)    {}

// Hook metrics (no-op)

func (m *NopMetrics) IncHookRegistrations(metric, event string) {}
func (m *NopMetrics) IncConfigurationErrors()                   {}

// Ensure NopMetrics implements Metrics.
var _ Metrics = (*NopMetrics)(nil)
