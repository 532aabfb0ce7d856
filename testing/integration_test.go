package testing

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasdelaet/kad-telemetry/metric"
	"github.com/thomasdelaet/kad-telemetry/persistence"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// cleanupNode is a helper that cleans up a node and ignores errors.
func cleanupNode(node *TestNode) {
	_ = node.Cleanup()
}

func startNode(t *testing.T, cfg *TestNodeConfig) *TestNode {
	t.Helper()
	node, err := NewTestNode(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { cleanupNode(node) })
	require.NoError(t, node.Start())
	return node
}

// TestTwoNodes_Ping tests that pings between websocket nodes produce
// persisted latency and availability samples about the remote node.
func TestTwoNodes_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	node1 := startNode(t, DefaultTestNodeConfig("node-1", dir))
	node2 := startNode(t, DefaultTestNodeConfig("node-2", dir))

	const pings = 3
	for i := 0; i < pings; i++ {
		require.NoError(t, node1.Ping(node2))
	}

	latency, err := node1.WaitForSamples(metric.LatencyName, pings, 5*time.Second)
	require.NoError(t, err)
	for _, s := range latency {
		assert.Equal(t, node2.Contact().Key(), s.ContactID)
		assert.GreaterOrEqual(t, s.Value, 0.0)
	}

	availability, err := node1.WaitForSamples(metric.AvailabilityName, pings, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1.0, availability[len(availability)-1].Value)

	// node2 only answered requests.
	samples, err := node2.Transport.Handle().Query(persistence.Query{Metric: metric.LatencyName})
	require.NoError(t, err)
	assert.Empty(t, samples)

	assert.Equal(t, 1, testutil.CollectAndCount(node1.Metrics.Registry(), "integration_request_latency_seconds"))
}

// TestTwoNodes_Timeout tests that unanswered requests lower availability.
func TestTwoNodes_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	cfg1 := DefaultTestNodeConfig("node-1", dir)
	cfg1.RequestTimeout = 100 * time.Millisecond
	cfg2 := DefaultTestNodeConfig("node-2", dir)
	cfg2.Handler = func(ctx context.Context, from types.Contact, req *transport.Message) (any, error) {
		return nil, transport.ErrNoReply
	}

	node1 := startNode(t, cfg1)
	node2 := startNode(t, cfg2)

	require.NoError(t, node1.Ping(node2))
	_, err := node1.WaitForSamples(metric.AvailabilityName, 1, 5*time.Second)
	require.NoError(t, err)

	msg, err := transport.NewRequest("find_node", nil)
	require.NoError(t, err)
	require.NoError(t, node1.Transport.Send(context.Background(), node2.Contact(), msg))

	availability, err := node1.WaitForSamples(metric.AvailabilityName, 2, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1.0, availability[0].Value)
	assert.Equal(t, 0.5, availability[1].Value)

	latency, err := node1.WaitForSamples(metric.LatencyName, 1, time.Second)
	require.NoError(t, err)
	assert.Len(t, latency, 1)
}

// TestNode_RestartKeepsSamples tests that a node can be stopped, started
// again and reopened read-only with every sample intact.
func TestNode_RestartKeepsSamples(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	cfg1 := DefaultTestNodeConfig("node-1", dir)
	cfg1.Scheme = persistence.SchemeBadger
	cfg1.Metrics = []string{metric.LatencyName}
	node1, err := NewTestNode(cfg1)
	require.NoError(t, err)
	t.Cleanup(func() { cleanupNode(node1) })
	require.NoError(t, node1.Start())
	node2 := startNode(t, DefaultTestNodeConfig("node-2", dir))

	require.NoError(t, node1.Ping(node2))
	_, err = node1.WaitForSamples(metric.LatencyName, 1, 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, node1.Stop())
	require.Eventually(t, func() bool {
		return node2.ConnCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, node1.Start())
	assert.Equal(t, 2, node1.Transport.HookCount())

	require.NoError(t, node1.Ping(node2))
	_, err = node1.WaitForSamples(metric.LatencyName, 2, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, node1.Cleanup())

	h := persistence.Open(node1.Locator(), persistence.WithReadOnly())
	defer h.Close()
	require.False(t, h.IsBroken(), "%v", h.Err())

	samples, err := h.Query(persistence.Query{Metric: metric.LatencyName})
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}
