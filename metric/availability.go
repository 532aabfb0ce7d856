package metric

import (
	"sync"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// AvailabilityName is the name of the availability metric.
const AvailabilityName = "availability"

// AvailabilityMetric tracks the share of requests a contact answers.
// Every response or timeout records the ratio responses/requests for the
// contact, a value between 0 and 1.
type AvailabilityMetric struct {
	opts  options
	stats map[string]*requestStats
	mu    sync.Mutex
}

type requestStats struct {
	requests  int
	responses int
}

func (s *requestStats) ratio() float64 {
	if s.requests == 0 {
		return 0
	}
	if s.responses >= s.requests {
		return 1
	}
	return float64(s.responses) / float64(s.requests)
}

// NewAvailability creates an availability metric.
func NewAvailability(opts ...Option) *AvailabilityMetric {
	return &AvailabilityMetric{
		opts:  newOptions(opts),
		stats: make(map[string]*requestStats),
	}
}

// Availability returns a factory for availability metrics.
func Availability(opts ...Option) Factory {
	return func() (Metric, error) {
		return NewAvailability(opts...), nil
	}
}

// Name implements Metric.
func (m *AvailabilityMetric) Name() string {
	return AvailabilityName
}

// Hooks implements Metric.
func (m *AvailabilityMetric) Hooks() []Hook {
	return []Hook{
		{Trigger: TriggerOn, Event: transport.EventSend, Handler: bind(onAvailabilitySend)},
		{Trigger: TriggerOn, Event: transport.EventReceive, Handler: bind(onAvailabilityReceive)},
		{Trigger: TriggerOn, Event: transport.EventTimeout, Handler: bind(onAvailabilityTimeout)},
	}
}

// Ratio returns the current ratio for a contact key.
func (m *AvailabilityMetric) Ratio(contactKey string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[contactKey]
	if !ok {
		return 0
	}
	return s.ratio()
}

func (m *AvailabilityMetric) statsFor(key string) *requestStats {
	s, ok := m.stats[key]
	if !ok {
		s = &requestStats{}
		m.stats[key] = s
	}
	return s
}

func onAvailabilitySend(m *AvailabilityMetric, _ Recorder, ev transport.Event) {
	if !ev.IsRequest() {
		return
	}
	m.mu.Lock()
	m.statsFor(ev.Contact.Key()).requests++
	m.mu.Unlock()
}

func onAvailabilityReceive(m *AvailabilityMetric, rec Recorder, ev transport.Event) {
	if !ev.IsResponse() {
		return
	}
	m.mu.Lock()
	s := m.statsFor(ev.Contact.Key())
	s.responses++
	ratio := s.ratio()
	m.mu.Unlock()

	m.record(rec, ev, ratio)
}

func onAvailabilityTimeout(m *AvailabilityMetric, rec Recorder, ev transport.Event) {
	m.mu.Lock()
	ratio := m.statsFor(ev.Contact.Key()).ratio()
	m.mu.Unlock()

	m.record(rec, ev, ratio)
}

func (m *AvailabilityMetric) record(rec Recorder, ev transport.Event, ratio float64) {
	sample := types.NewSample(AvailabilityName, m.opts.eventTime(ev), ratio, ev.Contact)
	if err := rec.Record(AvailabilityName, sample); err != nil {
		m.opts.logger.Debug("availability sample not recorded",
			logging.ContactID(sample.ContactID),
			logging.Error(err))
	}
}
