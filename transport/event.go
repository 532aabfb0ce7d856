package transport

import (
	"time"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// EventName identifies a transport lifecycle event.
type EventName string

// Transport events.
const (
	EventOpen    EventName = "open"
	EventClose   EventName = "close"
	EventSend    EventName = "send"
	EventReceive EventName = "receive"
	EventTimeout EventName = "timeout"
	EventError   EventName = "error"
)

// AllEvents returns every event a transport emits.
func AllEvents() []EventName {
	return []EventName{
		EventOpen,
		EventClose,
		EventSend,
		EventReceive,
		EventTimeout,
		EventError,
	}
}

// IsValid returns true if the name is a known event.
func (e EventName) IsValid() bool {
	switch e {
	case EventOpen, EventClose, EventSend, EventReceive, EventTimeout, EventError:
		return true
	default:
		return false
	}
}

// String returns the event name.
func (e EventName) String() string {
	return string(e)
}

// Event is the payload passed to listeners.
type Event struct {
	Name EventName

	// Contact is the remote contact the event concerns. It is the local
	// contact for open and close.
	Contact types.Contact

	// Message is the message sent, received or timed out. Nil for
	// lifecycle events.
	Message *Message

	// Err is set for error events.
	Err error

	// Time is when the event was observed.
	Time time.Time
}

// IsResponse returns true if the event carries a response message.
func (e Event) IsResponse() bool {
	return e.Message != nil && e.Message.IsResponse
}

// IsRequest returns true if the event carries a request message.
func (e Event) IsRequest() bool {
	return e.Message != nil && !e.Message.IsResponse
}

// Handler is an event listener.
type Handler func(Event)
