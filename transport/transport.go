// Package transport defines the RPC transport surface observed by the
// telemetry layer, together with an in-process implementation.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// DefaultRequestTimeout is how long a request waits for its response
// before a timeout event is emitted.
const DefaultRequestTimeout = 5 * time.Second

// Transport errors.
var (
	ErrNotOpen         = errors.New("transport is not open")
	ErrAlreadyOpen     = errors.New("transport is already open")
	ErrClosed          = errors.New("transport is closed")
	ErrUnknownContact  = errors.New("unknown contact")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrNilHandler      = errors.New("nil event handler")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrMethodNotFound  = errors.New("method not found")
	ErrNoReply         = errors.New("request left unanswered")
	ErrDuplicateMember = errors.New("contact already attached")
)

// Transport is a message-oriented RPC transport between contacts.
// Implementations deliver events synchronously on the goroutine that
// produced them.
type Transport interface {
	// Contact returns the local contact.
	Contact() types.Contact

	// Open starts accepting and sending messages.
	Open() error

	// Send delivers a request or a response to a remote contact.
	// Responses to requests are reported through receive events.
	Send(ctx context.Context, to types.Contact, msg *Message) error

	// Close stops the transport. Listeners stay registered so the
	// transport can be opened again.
	Close() error

	// On registers a persistent listener for an event.
	On(event EventName, handler Handler) error

	// Once registers a listener fired at most once.
	Once(event EventName, handler Handler) error
}

// RequestHandler answers inbound requests other than ping.
// Returning ErrNoReply leaves the request unanswered.
type RequestHandler func(ctx context.Context, from types.Contact, req *Message) (any, error)

// Options configures a transport.
type Options struct {
	// RequestTimeout bounds the wait for a response. Zero selects
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Handler answers inbound requests. Nil answers only ping.
	Handler RequestHandler

	// Clock drives timestamps and request timers.
	Clock clock.Clock

	// Logger is the transport logger. Nil disables logging.
	Logger *logging.Logger
}

// WithDefaults returns a copy of the options with zero fields filled in.
func (o Options) WithDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}

// Constructor builds a transport bound to a local contact.
type Constructor func(contact types.Contact, opts Options) (Transport, error)
