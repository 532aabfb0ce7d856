// Package testing provides test utilities for kad-telemetry integration tests.
package testing

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/metric"
	"github.com/thomasdelaet/kad-telemetry/metrics"
	"github.com/thomasdelaet/kad-telemetry/persistence"
	"github.com/thomasdelaet/kad-telemetry/telemetry"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/transport/websocket"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// TestNodeConfig configures a TestNode.
type TestNodeConfig struct {
	// Name is the peer ID of the node.
	Name string

	// DataDir holds the node's telemetry store.
	DataDir string

	// Scheme selects the persistence backend.
	Scheme string

	// Metrics are the metric names to register. Empty selects the defaults.
	Metrics []string

	// RequestTimeout bounds the wait for responses.
	RequestTimeout time.Duration

	// Handler answers inbound requests other than ping.
	Handler transport.RequestHandler
}

// DefaultTestNodeConfig returns a leveldb-backed configuration rooted in dataDir.
func DefaultTestNodeConfig(name, dataDir string) *TestNodeConfig {
	return &TestNodeConfig{
		Name:           name,
		DataDir:        dataDir,
		Scheme:         persistence.SchemeLevelDB,
		RequestTimeout: 2 * time.Second,
	}
}

// TestNode is a telemetry-enabled websocket transport on the loopback
// interface.
type TestNode struct {
	Transport *telemetry.Transport
	Metrics   *metrics.PrometheusMetrics

	locator string
}

// NewTestNode creates a node listening on an ephemeral loopback port.
func NewTestNode(tc *TestNodeConfig) (*TestNode, error) {
	contact, err := types.NewContact(peer.ID(tc.Name), "/ip4/127.0.0.1/tcp/0/ws")
	if err != nil {
		return nil, err
	}

	factories, err := metric.Resolve(tc.Metrics)
	if err != nil {
		return nil, err
	}

	locator := tc.Scheme + ":" + filepath.Join(tc.DataDir, tc.Name)
	sink := metrics.NewPrometheusMetrics("integration")

	d := telemetry.Decorate(websocket.Constructor(websocket.DefaultConfig()),
		telemetry.WithLogger(logging.NewNopLogger()),
		telemetry.WithMetrics(sink),
	)
	t, err := d.New(contact, telemetry.Options{
		Transport: transport.Options{
			RequestTimeout: tc.RequestTimeout,
			Handler:        tc.Handler,
		},
		Telemetry: telemetry.Config{
			Metrics:  factories,
			Filename: locator,
		},
	})
	if err != nil {
		return nil, err
	}
	if t.Handle().IsBroken() {
		_ = t.Release()
		return nil, fmt.Errorf("opening %s: %w", locator, t.Handle().Err())
	}

	return &TestNode{Transport: t, Metrics: sink, locator: locator}, nil
}

// Start opens the transport.
func (tn *TestNode) Start() error {
	return tn.Transport.Open()
}

// Stop closes the transport; it can be started again.
func (tn *TestNode) Stop() error {
	return tn.Transport.Close()
}

// Cleanup releases the transport and its persistence handle.
func (tn *TestNode) Cleanup() error {
	return tn.Transport.Release()
}

// Contact returns the bound contact of the node.
func (tn *TestNode) Contact() types.Contact {
	return tn.Transport.Contact()
}

// Locator returns the persistence locator of the node.
func (tn *TestNode) Locator() string {
	return tn.locator
}

// ConnCount returns the number of live websocket connections.
func (tn *TestNode) ConnCount() int {
	ws, ok := tn.Transport.Unwrap().(*websocket.Transport)
	if !ok {
		return 0
	}
	return ws.ConnCount()
}

// Ping sends a ping to other.
func (tn *TestNode) Ping(other *TestNode) error {
	return tn.Transport.Send(context.Background(), other.Contact(), transport.NewPing())
}

// WaitForSamples polls the node's store until at least n samples of the
// metric are persisted.
func (tn *TestNode) WaitForSamples(name string, n int, timeout time.Duration) ([]types.Sample, error) {
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := tn.Transport.Flush(ctx)
		cancel()
		if err != nil {
			return nil, err
		}

		samples, err := tn.Transport.Handle().Query(persistence.Query{Metric: name})
		if err != nil {
			return nil, err
		}
		if len(samples) >= n {
			return samples, nil
		}
		if time.Now().After(deadline) {
			return samples, fmt.Errorf("timeout waiting for %d %s samples, have %d", n, name, len(samples))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
