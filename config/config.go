// Package config provides TOML configuration for a kad-telemetry node.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for a telemetry-enabled node.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	Transport TransportConfig `toml:"transport"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Tracing   TracingConfig   `toml:"tracing"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NodeConfig contains the local node identity.
type NodeConfig struct {
	// ID is the node identifier advertised to peers.
	ID string `toml:"id"`

	// ListenAddr is the multiaddr the transport listens on.
	ListenAddr string `toml:"listen_addr"`
}

// TransportConfig contains RPC transport configuration.
type TransportConfig struct {
	// Kind selects the transport implementation ("websocket" or "memory").
	Kind string `toml:"kind"`

	// RequestTimeout is how long a request waits for its response.
	RequestTimeout Duration `toml:"request_timeout"`

	// PingInterval is the time between pings to configured peers.
	// Zero disables pinging.
	PingInterval Duration `toml:"ping_interval"`

	// Peers are contacts to ping, formatted as "<id>@<multiaddr>".
	Peers []string `toml:"peers"`
}

// TelemetryConfig contains telemetry layer configuration.
type TelemetryConfig struct {
	// Filename is the persistence locator ("", "memory:", "leveldb:<path>",
	// "badger:<path>" or a bare leveldb path).
	Filename string `toml:"filename"`

	// Metrics are the metric names to register. Empty selects the defaults.
	Metrics []string `toml:"metrics"`

	// QueueSize is the number of samples buffered for the persistence writer.
	QueueSize int `toml:"queue_size"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics collection is active.
	Enabled bool `toml:"enabled"`

	// Namespace is the Prometheus metrics namespace prefix.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled determines whether spans are exported.
	Enabled bool `toml:"enabled"`

	// ServiceName identifies this node in traces.
	ServiceName string `toml:"service_name"`

	// Exporter is one of "otlp-grpc", "otlp-http", "stdout", "zipkin", "none".
	Exporter string `toml:"exporter"`

	// Endpoint is the exporter endpoint.
	Endpoint string `toml:"endpoint"`

	// SampleRate is the sampling rate (0.0 to 1.0).
	SampleRate float64 `toml:"sample_rate"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`

	// Output is the log output destination ("stdout", "stderr", or a file path).
	Output string `toml:"output"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Transport kinds.
const (
	TransportWebsocket = "websocket"
	TransportMemory    = "memory"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:         "kad-node",
			ListenAddr: "/ip4/0.0.0.0/tcp/4650/ws",
		},
		Transport: TransportConfig{
			Kind:           TransportWebsocket,
			RequestTimeout: Duration(5 * time.Second),
			PingInterval:   Duration(30 * time.Second),
			Peers:          []string{},
		},
		Telemetry: TelemetryConfig{
			Filename:  "leveldb:data/telemetry",
			Metrics:   []string{},
			QueueSize: 1024,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "kadtelemetry",
			ListenAddr: ":9090",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kad-telemetry",
			Exporter:    "none",
			Endpoint:    "localhost:4317",
			SampleRate:  0.1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validation errors.
var (
	ErrEmptyNodeID               = errors.New("node id cannot be empty")
	ErrEmptyListenAddr           = errors.New("node listen_addr cannot be empty")
	ErrInvalidTransportKind      = errors.New("transport kind must be 'websocket' or 'memory'")
	ErrInvalidRequestTimeout     = errors.New("transport request_timeout must be positive")
	ErrInvalidPingInterval       = errors.New("transport ping_interval must be non-negative")
	ErrInvalidPeer               = errors.New("transport peers must be formatted as <id>@<multiaddr>")
	ErrInvalidQueueSize          = errors.New("telemetry queue_size must be positive")
	ErrEmptyMetricName           = errors.New("telemetry metrics cannot contain empty names")
	ErrDuplicateMetric           = errors.New("telemetry metrics cannot contain duplicates")
	ErrEmptyMetricsNamespace     = errors.New("metrics namespace cannot be empty when enabled")
	ErrEmptyMetricsListenAddr    = errors.New("metrics listen_addr cannot be empty when enabled")
	ErrEmptyTracingServiceName   = errors.New("tracing service_name cannot be empty when enabled")
	ErrInvalidTracingExporter    = errors.New("tracing exporter must be one of: otlp-grpc, otlp-http, stdout, zipkin, none")
	ErrInvalidTracingSampleRate  = errors.New("tracing sample_rate must be between 0 and 1")
	ErrInvalidLogLevel           = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat          = errors.New("log format must be 'text' or 'json'")
	ErrEmptyLogOutput            = errors.New("log output cannot be empty")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Node.Validate(); err != nil {
		return fmt.Errorf("node config: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the node configuration for errors.
func (c *NodeConfig) Validate() error {
	if c.ID == "" {
		return ErrEmptyNodeID
	}
	if c.ListenAddr == "" {
		return ErrEmptyListenAddr
	}
	return nil
}

// Validate checks the transport configuration for errors.
func (c *TransportConfig) Validate() error {
	if c.Kind != TransportWebsocket && c.Kind != TransportMemory {
		return ErrInvalidTransportKind
	}
	if c.RequestTimeout.Duration() <= 0 {
		return ErrInvalidRequestTimeout
	}
	if c.PingInterval.Duration() < 0 {
		return ErrInvalidPingInterval
	}
	for _, p := range c.Peers {
		if _, _, err := SplitPeer(p); err != nil {
			return err
		}
	}
	return nil
}

// SplitPeer splits a "<id>@<multiaddr>" peer entry.
func SplitPeer(entry string) (id string, addr string, err error) {
	id, addr, ok := strings.Cut(entry, "@")
	if !ok || id == "" || addr == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPeer, entry)
	}
	return id, addr, nil
}

// Validate checks the telemetry configuration for errors.
// Metric names are resolved against the registry by the caller.
func (c *TelemetryConfig) Validate() error {
	if c.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}
	seen := make(map[string]struct{}, len(c.Metrics))
	for _, name := range c.Metrics {
		if name == "" {
			return ErrEmptyMetricName
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateMetric, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Validate checks the metrics configuration for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled {
		if c.Namespace == "" {
			return ErrEmptyMetricsNamespace
		}
		if c.ListenAddr == "" {
			return ErrEmptyMetricsListenAddr
		}
	}
	return nil
}

// Validate checks the tracing configuration for errors.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrEmptyTracingServiceName
	}
	switch c.Exporter {
	case "otlp-grpc", "otlp-http", "stdout", "zipkin", "none":
	default:
		return ErrInvalidTracingExporter
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return ErrInvalidTracingSampleRate
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return ErrInvalidLogLevel
	}

	switch c.Format {
	case "text", "json":
		// Valid formats
	default:
		return ErrInvalidLogFormat
	}

	if c.Output == "" {
		return ErrEmptyLogOutput
	}

	return nil
}

// WriteConfigFile writes the configuration to a TOML file.
func WriteConfigFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// EnsureDataDirs creates the data directory backing a file-based
// persistence locator.
func (c *Config) EnsureDataDirs() error {
	_, path, ok := strings.Cut(c.Telemetry.Filename, ":")
	if !ok {
		path = c.Telemetry.Filename
	}
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}
