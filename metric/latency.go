package metric

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// LatencyName is the name of the latency metric.
const LatencyName = "latency"

// LatencyMetric measures request round trips. Each response matching a
// remembered request yields one sample: the elapsed time in milliseconds,
// attributed to the responding contact.
type LatencyMetric struct {
	opts    options
	pending *lru.Cache[string, time.Time]
}

// NewLatency creates a latency metric.
func NewLatency(opts ...Option) (*LatencyMetric, error) {
	o := newOptions(opts)
	pending, err := lru.New[string, time.Time](o.capacity)
	if err != nil {
		return nil, fmt.Errorf("creating pending request table: %w", err)
	}
	return &LatencyMetric{opts: o, pending: pending}, nil
}

// Latency returns a factory for latency metrics.
func Latency(opts ...Option) Factory {
	return func() (Metric, error) {
		return NewLatency(opts...)
	}
}

// Name implements Metric.
func (m *LatencyMetric) Name() string {
	return LatencyName
}

// Hooks implements Metric.
func (m *LatencyMetric) Hooks() []Hook {
	return []Hook{
		{Trigger: TriggerOn, Event: transport.EventSend, Handler: bind(onLatencySend)},
		{Trigger: TriggerOn, Event: transport.EventReceive, Handler: bind(onLatencyReceive)},
	}
}

// Pending returns the number of requests awaiting a response.
func (m *LatencyMetric) Pending() int {
	return m.pending.Len()
}

func onLatencySend(m *LatencyMetric, _ Recorder, ev transport.Event) {
	if !ev.IsRequest() {
		return
	}
	m.pending.Add(ev.Message.ID, m.opts.eventTime(ev))
}

func onLatencyReceive(m *LatencyMetric, rec Recorder, ev transport.Event) {
	if !ev.IsResponse() {
		return
	}
	sent, ok := m.pending.Peek(ev.Message.ID)
	if !ok {
		return
	}
	// Only the receiver that removes the entry records the sample.
	if !m.pending.Remove(ev.Message.ID) {
		return
	}

	now := m.opts.eventTime(ev)
	elapsed := now.Sub(sent)
	if elapsed < 0 {
		elapsed = 0
	}

	sample := types.NewSample(LatencyName, now, float64(elapsed)/float64(time.Millisecond), ev.Contact)
	if err := rec.Record(LatencyName, sample); err != nil {
		m.opts.logger.Debug("latency sample not recorded",
			logging.ContactID(sample.ContactID),
			logging.Latency(elapsed),
			logging.Error(err))
	}
}
