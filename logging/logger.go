// Package logging provides the structured logger used across kad-telemetry.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// Logger is a structured logger for kad-telemetry.
// It wraps slog.Logger with convenience methods for common logging patterns.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the given handler.
func New(handler slog.Handler) *Logger {
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a new Logger with text output format.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
	}
	return New(slog.NewTextHandler(w, opts))
}

// NewJSONLogger creates a new Logger with JSON output format.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
	}
	return New(slog.NewJSONHandler(w, opts))
}

// ParseLevel converts a configured level name into a slog.Level.
// Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewDevelopmentLogger creates a logger suitable for development.
// Uses text format with debug level output to stderr.
func NewDevelopmentLogger() *Logger {
	return NewTextLogger(os.Stderr, slog.LevelDebug)
}

// NewProductionLogger creates a logger suitable for production.
// Uses JSON format with info level output to stdout.
func NewProductionLogger() *Logger {
	return NewJSONLogger(os.Stdout, slog.LevelInfo)
}

// NewNopLogger creates a logger that discards all output.
func NewNopLogger() *Logger {
	return New(nopHandler{})
}

// With returns a new Logger with the given attributes added to every log entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// WithComponent returns a new Logger with a component attribute.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithPeer returns a new Logger with a peer attribute.
func (l *Logger) WithPeer(id peer.ID) *Logger {
	return l.With(PeerID(id))
}

// WithContact returns a new Logger with a contact attribute.
func (l *Logger) WithContact(c types.Contact) *Logger {
	return l.With(ContactID(c.Key()))
}

// WithMetric returns a new Logger with a metric attribute.
func (l *Logger) WithMetric(name string) *Logger {
	return l.With(Metric(name))
}

// Common attribute constructors for telemetry-specific fields.

// Component creates a component attribute for identifying the source module.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// PeerID creates a peer ID attribute.
func PeerID(id peer.ID) slog.Attr {
	return slog.String("peer_id", id.String())
}

// ContactID creates a contact attribute from a contact key.
func ContactID(key string) slog.Attr {
	return slog.String("contact", key)
}

// Metric creates a metric name attribute.
func Metric(name string) slog.Attr {
	return slog.String("metric", name)
}

// Event creates a transport event name attribute.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Trigger creates a hook trigger attribute.
func Trigger(name string) slog.Attr {
	return slog.String("trigger", name)
}

// Locator creates a persistence locator attribute.
func Locator(loc string) slog.Attr {
	return slog.String("locator", loc)
}

// Method creates an RPC method attribute.
func Method(m string) slog.Attr {
	return slog.String("method", m)
}

// MessageID creates an RPC message ID attribute.
func MessageID(id string) slog.Attr {
	return slog.String("msg_id", id)
}

// Value creates a sample value attribute.
func Value(v float64) slog.Attr {
	return slog.Float64("value", v)
}

// Duration creates a duration attribute in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64("duration_ms", float64(d.Nanoseconds())/1e6)
}

// DurationSeconds creates a duration attribute in seconds.
func DurationSeconds(d time.Duration) slog.Attr {
	return slog.Float64("duration_s", d.Seconds())
}

// Latency creates a latency attribute in milliseconds.
func Latency(d time.Duration) slog.Attr {
	return slog.Float64("latency_ms", float64(d.Nanoseconds())/1e6)
}

// Count creates a count attribute.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Size creates a size attribute in bytes.
func Size(n int) slog.Attr {
	return slog.Int("size_bytes", n)
}

// Address creates an address attribute.
func Address(addr string) slog.Attr {
	return slog.String("address", addr)
}

// Direction creates a connection direction attribute.
func Direction(isOutbound bool) slog.Attr {
	dir := "inbound"
	if isOutbound {
		dir = "outbound"
	}
	return slog.String("direction", dir)
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Reason creates a reason attribute.
func Reason(r string) slog.Attr {
	return slog.String("reason", r)
}

// State creates a state attribute.
func State(s string) slog.Attr {
	return slog.String("state", s)
}

// nopHandler is a slog.Handler that discards all logs.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
