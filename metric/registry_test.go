package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasdelaet/kad-telemetry/types"
)

func unregister(name string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.builders, name)
}

func TestRegistry_Builtins(t *testing.T) {
	names := Names()
	for _, name := range []string{AvailabilityName, LatencyName, ReliabilityName, UptimeName} {
		assert.Contains(t, names, name)
	}
	assert.IsIncreasing(t, names)
}

func TestRegistry_Register(t *testing.T) {
	t.Cleanup(func() { unregister("custom") })

	require.NoError(t, Register("custom", Reliability()))

	f, err := Lookup("custom")
	require.NoError(t, err)
	m, err := f()
	require.NoError(t, err)
	assert.Equal(t, ReliabilityName, m.Name())

	err = Register("custom", Reliability())
	require.ErrorIs(t, err, ErrDuplicateMetric)
	require.ErrorIs(t, err, types.ErrConfiguration)
}

func TestRegistry_Errors(t *testing.T) {
	err := Register("", Latency())
	require.ErrorIs(t, err, ErrEmptyMetricName)

	err = Register("nil-factory", nil)
	require.ErrorIs(t, err, ErrNilFactory)

	_, err = Lookup("does-not-exist")
	require.ErrorIs(t, err, ErrUnknownMetric)
	require.ErrorIs(t, err, types.ErrConfiguration)
}

func TestResolve(t *testing.T) {
	factories, err := Resolve([]string{LatencyName, UptimeName})
	require.NoError(t, err)
	require.Len(t, factories, 2)

	m, err := factories[1]()
	require.NoError(t, err)
	assert.Equal(t, UptimeName, m.Name())

	_, err = Resolve([]string{LatencyName, "bogus"})
	require.ErrorIs(t, err, ErrUnknownMetric)

	factories, err = Resolve(nil)
	require.NoError(t, err)
	assert.Empty(t, factories)
}

func TestResolve_AppliesOptions(t *testing.T) {
	factories, err := Resolve([]string{LatencyName}, WithCapacity(3))
	require.NoError(t, err)

	m, err := factories[0]()
	require.NoError(t, err)
	lm, ok := m.(*LatencyMetric)
	require.True(t, ok)
	assert.Equal(t, 3, lm.opts.capacity)
}

func TestRegisterBuilder(t *testing.T) {
	t.Cleanup(func() { unregister("tuned") })

	var got int
	require.NoError(t, RegisterBuilder("tuned", func(opts ...Option) Factory {
		got = len(opts)
		return Reliability(opts...)
	}))
	_, err := Lookup("tuned", WithLogger(nil), WithCapacity(1))
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	require.ErrorIs(t, RegisterBuilder("nil-builder", nil), ErrNilFactory)
	require.ErrorIs(t, RegisterBuilder("tuned", Uptime), ErrDuplicateMetric)
}
