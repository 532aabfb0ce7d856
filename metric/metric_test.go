package metric

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// memRecorder keeps recorded samples in memory.
type memRecorder struct {
	samples []types.Sample
	err     error
	mu      sync.Mutex
}

func (r *memRecorder) Record(name string, s types.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	s.Metric = name
	r.samples = append(r.samples, s)
	return nil
}

func (r *memRecorder) all() []types.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Sample(nil), r.samples...)
}

// wire subscribes every hook of m to a fresh emitter.
func wire(t *testing.T, m Metric, rec Recorder) *transport.Emitter {
	t.Helper()
	e := &transport.Emitter{}
	for _, h := range m.Hooks() {
		require.NoError(t, h.Validate())
		require.NoError(t, h.Trigger.Subscribe(e, h.Event, h.Handler(m, rec)))
	}
	return e
}

func contact(name string) types.Contact {
	return types.Contact{ID: peer.ID(name)}
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func request(id string) *transport.Message {
	return &transport.Message{ID: id, Method: "ping"}
}

func response(id string) *transport.Message {
	return &transport.Message{ID: id, Method: "ping", IsResponse: true}
}

func TestTrigger(t *testing.T) {
	assert.True(t, TriggerOn.IsValid())
	assert.True(t, TriggerOnce.IsValid())
	assert.False(t, Trigger("before").IsValid())
	assert.False(t, Trigger("").IsValid())
	assert.Equal(t, "once", TriggerOnce.String())
}

func TestTrigger_Subscribe(t *testing.T) {
	e := &transport.Emitter{}
	calls := 0
	h := func(transport.Event) { calls++ }

	require.NoError(t, TriggerOn.Subscribe(e, transport.EventSend, h))
	require.NoError(t, TriggerOnce.Subscribe(e, transport.EventSend, h))

	e.Emit(transport.Event{Name: transport.EventSend})
	e.Emit(transport.Event{Name: transport.EventSend})
	assert.Equal(t, 3, calls)

	err := Trigger("before").Subscribe(e, transport.EventSend, h)
	require.ErrorIs(t, err, types.ErrConfiguration)
	assert.Equal(t, 1, e.ListenerCount(transport.EventSend))
}

func TestHook_Validate(t *testing.T) {
	handler := func(Metric, Recorder) transport.Handler { return func(transport.Event) {} }

	tests := []struct {
		name string
		hook Hook
		ok   bool
	}{
		{"valid", Hook{Trigger: TriggerOn, Event: transport.EventSend, Handler: handler}, true},
		{"bad trigger", Hook{Trigger: "before", Event: transport.EventSend, Handler: handler}, false},
		{"bad event", Hook{Trigger: TriggerOn, Event: "response", Handler: handler}, false},
		{"nil handler", Hook{Trigger: TriggerOnce, Event: transport.EventOpen}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hook.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}

func TestBind_WrongMetric(t *testing.T) {
	latency, err := NewLatency()
	require.NoError(t, err)

	// A latency hook bound to another metric instance yields no handler
	h := latency.Hooks()[0]
	assert.Nil(t, h.Handler(NewAvailability(), &memRecorder{}))
	assert.Nil(t, h.Handler(latency, nil))
	assert.NotNil(t, h.Handler(latency, &memRecorder{}))
}

func TestHookCount(t *testing.T) {
	n, err := HookCount([]Factory{Latency(), Availability()})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = HookCount([]Factory{Reliability(), Uptime()})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = HookCount([]Factory{func() (Metric, error) { return nil, errors.New("boom") }})
	require.Error(t, err)
}

func TestBuiltinHooksValidate(t *testing.T) {
	for _, name := range []string{LatencyName, AvailabilityName, ReliabilityName, UptimeName} {
		t.Run(name, func(t *testing.T) {
			f, err := Lookup(name)
			require.NoError(t, err)
			m, err := f()
			require.NoError(t, err)
			assert.Equal(t, name, m.Name())
			for _, h := range m.Hooks() {
				require.NoError(t, h.Validate())
			}
		})
	}
}
