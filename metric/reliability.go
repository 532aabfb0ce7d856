package metric

import (
	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// ReliabilityName is the name of the reliability metric.
const ReliabilityName = "reliability"

// ReliabilityMetric records one sample per exchange outcome: 1 for a
// successful response, 0 for an error response or a transport error.
type ReliabilityMetric struct {
	opts options
}

// NewReliability creates a reliability metric.
func NewReliability(opts ...Option) *ReliabilityMetric {
	return &ReliabilityMetric{opts: newOptions(opts)}
}

// Reliability returns a factory for reliability metrics.
func Reliability(opts ...Option) Factory {
	return func() (Metric, error) {
		return NewReliability(opts...), nil
	}
}

// Name implements Metric.
func (m *ReliabilityMetric) Name() string {
	return ReliabilityName
}

// Hooks implements Metric.
func (m *ReliabilityMetric) Hooks() []Hook {
	return []Hook{
		{Trigger: TriggerOn, Event: transport.EventReceive, Handler: bind(onReliabilityReceive)},
		{Trigger: TriggerOn, Event: transport.EventError, Handler: bind(onReliabilityError)},
	}
}

func onReliabilityReceive(m *ReliabilityMetric, rec Recorder, ev transport.Event) {
	if !ev.IsResponse() {
		return
	}
	value := 1.0
	if ev.Message.Error != "" {
		value = 0
	}
	m.record(rec, ev, value)
}

func onReliabilityError(m *ReliabilityMetric, rec Recorder, ev transport.Event) {
	m.record(rec, ev, 0)
}

func (m *ReliabilityMetric) record(rec Recorder, ev transport.Event, value float64) {
	sample := types.NewSample(ReliabilityName, m.opts.eventTime(ev), value, ev.Contact)
	if err := rec.Record(ReliabilityName, sample); err != nil {
		m.opts.logger.Debug("reliability sample not recorded",
			logging.ContactID(sample.ContactID),
			logging.Error(err))
	}
}
