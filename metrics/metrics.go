// Package metrics provides Prometheus instrumentation of the telemetry
// layer itself: samples recorded and dropped, storage errors and hook
// registrations.
package metrics

import (
	"time"
)

// Metrics defines the interface for instrumenting the telemetry layer.
// All methods are designed to be thread-safe and non-blocking.
type Metrics interface {
	// Sample metrics
	IncSamplesRecorded(metric string)
	IncSamplesDropped(metric, reason string)
	SetLastValue(metric, contact string, value float64)
	ObserveLatency(latency time.Duration)

	// Storage metrics
	IncStorageErrors(op string)
	SetQueueDepth(depth int)

	// Hook metrics
	IncHookRegistrations(metric, event string)
	IncConfigurationErrors()
}

// Drop reason labels.
const (
	ReasonQueueFull = "queue_full"
	ReasonInvalid   = "invalid"
	ReasonClosed    = "closed"
	ReasonBroken    = "broken"
)

// Storage operation labels.
const (
	OpOpen   = "open"
	OpAppend = "append"
	OpQuery  = "query"
	OpClose  = "close"
)
