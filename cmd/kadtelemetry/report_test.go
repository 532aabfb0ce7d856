package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasdelaet/kad-telemetry/metric"
	"github.com/thomasdelaet/kad-telemetry/persistence"
	"github.com/thomasdelaet/kad-telemetry/types"
)

func TestBuildReport(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store := persistence.NewMemoryStore()
	for i, s := range []types.Sample{
		{Metric: metric.LatencyName, Timestamp: epoch, Value: 200, ContactID: "slow"},
		{Metric: metric.LatencyName, Timestamp: epoch.Add(time.Second), Value: 10, ContactID: "fast"},
		{Metric: metric.LatencyName, Timestamp: epoch.Add(2 * time.Second), Value: 30, ContactID: "fast"},
		{Metric: metric.AvailabilityName, Timestamp: epoch, Value: 1, ContactID: "slow"},
	} {
		require.NoError(t, store.Append(s), "sample %d", i)
	}

	h := persistence.Open("memory:", persistence.WithStore(store))
	defer h.Close()

	rows, err := buildReport(h, []string{metric.LatencyName, metric.AvailabilityName}, "", time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "fast", rows[0].Contact)
	assert.Equal(t, 2, rows[0].Count)
	assert.InDelta(t, 20.0, rows[0].Mean, 1e-9)
	assert.InDelta(t, 100.0/120.0, rows[0].Score, 1e-9)
	assert.Equal(t, "slow", rows[1].Contact)
	assert.Equal(t, metric.AvailabilityName, rows[2].Metric)
	assert.InDelta(t, 1.0, rows[2].Score, 1e-9)

	t.Run("contact filter", func(t *testing.T) {
		rows, err := buildReport(h, []string{metric.LatencyName}, "slow", time.Time{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "slow", rows[0].Contact)
	})

	t.Run("since", func(t *testing.T) {
		rows, err := buildReport(h, []string{metric.LatencyName}, "", epoch.Add(time.Second))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "fast", rows[0].Contact)
	})
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, nil))
	assert.Equal(t, "no samples\n", buf.String())

	buf.Reset()
	require.NoError(t, writeReport(&buf, []reportRow{{
		Metric:  metric.LatencyName,
		Contact: "fast",
		Score:   0.5,
		Count:   1,
		Mean:    100,
	}}))
	assert.Contains(t, buf.String(), "METRIC")
	assert.Contains(t, buf.String(), "0.500")
}

func TestParsePeers(t *testing.T) {
	peers, err := parsePeers([]string{"alpha@/ip4/127.0.0.1/tcp/4651/ws"})
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/4651/ws", peers[0].Addr.String())

	_, err = parsePeers([]string{"missing-address"})
	require.Error(t, err)
}
