package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)

	// Node defaults
	require.Equal(t, "kad-node", cfg.Node.ID)
	require.Equal(t, "/ip4/0.0.0.0/tcp/4650/ws", cfg.Node.ListenAddr)

	// Transport defaults
	require.Equal(t, TransportWebsocket, cfg.Transport.Kind)
	require.Equal(t, 5*time.Second, cfg.Transport.RequestTimeout.Duration())
	require.Equal(t, 30*time.Second, cfg.Transport.PingInterval.Duration())
	require.Empty(t, cfg.Transport.Peers)

	// Telemetry defaults
	require.Equal(t, "leveldb:data/telemetry", cfg.Telemetry.Filename)
	require.Empty(t, cfg.Telemetry.Metrics)
	require.Equal(t, 1024, cfg.Telemetry.QueueSize)

	// Metrics defaults
	require.False(t, cfg.Metrics.Enabled)
	require.Equal(t, "kadtelemetry", cfg.Metrics.Namespace)
	require.Equal(t, ":9090", cfg.Metrics.ListenAddr)

	// Tracing defaults
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "none", cfg.Tracing.Exporter)

	// Logging defaults
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, "stderr", cfg.Logging.Output)
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.NoError(t, err)
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[node]
id = "node-7"
listen_addr = "/ip4/127.0.0.1/tcp/9000/ws"

[transport]
kind = "websocket"
request_timeout = "2s"
ping_interval = "10s"
peers = ["node-8@/ip4/127.0.0.1/tcp/9001/ws"]

[telemetry]
filename = "badger:data/tele"
metrics = ["latency", "reliability"]
queue_size = 64

[metrics]
enabled = true
namespace = "kad"
listen_addr = ":9191"

[logging]
level = "debug"
format = "json"
output = "stdout"
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	require.Equal(t, "node-7", cfg.Node.ID)
	require.Equal(t, "/ip4/127.0.0.1/tcp/9000/ws", cfg.Node.ListenAddr)
	require.Equal(t, 2*time.Second, cfg.Transport.RequestTimeout.Duration())
	require.Equal(t, 10*time.Second, cfg.Transport.PingInterval.Duration())
	require.Equal(t, []string{"node-8@/ip4/127.0.0.1/tcp/9001/ws"}, cfg.Transport.Peers)
	require.Equal(t, "badger:data/tele", cfg.Telemetry.Filename)
	require.Equal(t, []string{"latency", "reliability"}, cfg.Telemetry.Metrics)
	require.Equal(t, 64, cfg.Telemetry.QueueSize)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, "kad", cfg.Metrics.Namespace)
	require.Equal(t, "debug", cfg.Logging.Level)

	// Unspecified sections keep their defaults
	require.Equal(t, "none", cfg.Tracing.Exporter)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
		require.Error(t, err)
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[node\nid = "), 0644))
		_, err := LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.toml")
		require.NoError(t, os.WriteFile(path, []byte("[transport]\nkind = \"carrier-pigeon\"\n"), 0644))
		_, err := LoadConfig(path)
		require.ErrorIs(t, err, ErrInvalidTransportKind)
	})
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"empty node id", func(c *Config) { c.Node.ID = "" }, ErrEmptyNodeID},
		{"empty listen addr", func(c *Config) { c.Node.ListenAddr = "" }, ErrEmptyListenAddr},
		{"bad transport kind", func(c *Config) { c.Transport.Kind = "udp" }, ErrInvalidTransportKind},
		{"zero request timeout", func(c *Config) { c.Transport.RequestTimeout = 0 }, ErrInvalidRequestTimeout},
		{"negative ping interval", func(c *Config) { c.Transport.PingInterval = Duration(-time.Second) }, ErrInvalidPingInterval},
		{"bad peer", func(c *Config) { c.Transport.Peers = []string{"no-address"} }, ErrInvalidPeer},
		{"zero queue size", func(c *Config) { c.Telemetry.QueueSize = 0 }, ErrInvalidQueueSize},
		{"empty metric", func(c *Config) { c.Telemetry.Metrics = []string{""} }, ErrEmptyMetricName},
		{"duplicate metric", func(c *Config) { c.Telemetry.Metrics = []string{"latency", "latency"} }, ErrDuplicateMetric},
		{"metrics without namespace", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Namespace = ""
		}, ErrEmptyMetricsNamespace},
		{"metrics without listen addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = ""
		}, ErrEmptyMetricsListenAddr},
		{"tracing without service", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.ServiceName = ""
		}, ErrEmptyTracingServiceName},
		{"tracing bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger-thrift"
		}, ErrInvalidTracingExporter},
		{"tracing bad sample rate", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 1.5
		}, ErrInvalidTracingSampleRate},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
		{"empty log output", func(c *Config) { c.Logging.Output = "" }, ErrEmptyLogOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDisabledSectionsSkipValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Namespace = ""
	cfg.Tracing.Exporter = "bogus"
	require.NoError(t, cfg.Validate())
}

func TestSplitPeer(t *testing.T) {
	id, addr, err := SplitPeer("node-1@/ip4/10.0.0.1/tcp/4650/ws")
	require.NoError(t, err)
	require.Equal(t, "node-1", id)
	require.Equal(t, "/ip4/10.0.0.1/tcp/4650/ws", addr)

	for _, bad := range []string{"", "node-1", "@/ip4/1.2.3.4/tcp/1", "node-1@"} {
		_, _, err := SplitPeer(bad)
		require.ErrorIs(t, err, ErrInvalidPeer, bad)
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	require.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1m30s", string(text))

	require.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestWriteConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Node.ID = "written-node"
	cfg.Telemetry.Metrics = []string{"latency"}
	require.NoError(t, WriteConfigFile(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "written-node", loaded.Node.ID)
	require.Equal(t, []string{"latency"}, loaded.Telemetry.Metrics)
	require.Equal(t, cfg.Transport.RequestTimeout, loaded.Transport.RequestTimeout)
}

func TestEnsureDataDirs(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Telemetry.Filename = "leveldb:" + filepath.Join(tmpDir, "data", "telemetry")
	require.NoError(t, cfg.EnsureDataDirs())

	info, err := os.Stat(filepath.Join(tmpDir, "data"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	cfg.Telemetry.Filename = "memory:"
	require.NoError(t, cfg.EnsureDataDirs())

	cfg.Telemetry.Filename = ""
	require.NoError(t, cfg.EnsureDataDirs())
}
