package metric

import (
	"sync"
	"time"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// UptimeName is the name of the uptime metric.
const UptimeName = "uptime"

// UptimeMetric measures the time since the transport was first opened.
// Every close records the elapsed seconds against the local contact.
type UptimeMetric struct {
	opts   options
	opened time.Time
	mu     sync.Mutex
}

// NewUptime creates an uptime metric.
func NewUptime(opts ...Option) *UptimeMetric {
	return &UptimeMetric{opts: newOptions(opts)}
}

// Uptime returns a factory for uptime metrics.
func Uptime(opts ...Option) Factory {
	return func() (Metric, error) {
		return NewUptime(opts...), nil
	}
}

// Name implements Metric.
func (m *UptimeMetric) Name() string {
	return UptimeName
}

// Hooks implements Metric.
func (m *UptimeMetric) Hooks() []Hook {
	return []Hook{
		{Trigger: TriggerOnce, Event: transport.EventOpen, Handler: bind(onUptimeOpen)},
		{Trigger: TriggerOn, Event: transport.EventClose, Handler: bind(onUptimeClose)},
	}
}

// OpenedAt returns when the transport was first opened, or the zero time.
func (m *UptimeMetric) OpenedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

func onUptimeOpen(m *UptimeMetric, _ Recorder, ev transport.Event) {
	m.mu.Lock()
	m.opened = m.opts.eventTime(ev)
	m.mu.Unlock()
}

func onUptimeClose(m *UptimeMetric, rec Recorder, ev transport.Event) {
	m.mu.Lock()
	opened := m.opened
	m.mu.Unlock()
	if opened.IsZero() {
		return
	}

	now := m.opts.eventTime(ev)
	uptime := now.Sub(opened)
	sample := types.NewSample(UptimeName, now, uptime.Seconds(), ev.Contact)
	if err := rec.Record(UptimeName, sample); err != nil {
		m.opts.logger.Debug("uptime sample not recorded",
			logging.DurationSeconds(uptime),
			logging.Error(err))
	}
}
