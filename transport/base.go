package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// State is the lifecycle state of a transport.
type State int

// Transport states.
const (
	StateNew State = iota
	StateOpen
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Base carries the state shared by concrete transports: listeners,
// lifecycle, request timers and inbound dispatch.
type Base struct {
	Emitter

	contact types.Contact
	opts    Options
	logger  *logging.Logger

	// pending maps request IDs to their timeout timers
	pending map[string]*clock.Timer
	state   State
	mu      sync.Mutex
}

// NewBase creates the shared transport state for a local contact.
func NewBase(contact types.Contact, opts Options) *Base {
	opts = opts.WithDefaults()
	return &Base{
		contact: contact,
		opts:    opts,
		logger:  opts.Logger.WithContact(contact),
		pending: make(map[string]*clock.Timer),
	}
}

// Contact returns the local contact.
func (b *Base) Contact() types.Contact {
	return b.contact
}

// Options returns the transport options with defaults applied.
func (b *Base) Options() Options {
	return b.opts
}

// Logger returns the transport logger.
func (b *Base) Logger() *logging.Logger {
	return b.logger
}

// State returns the lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen returns true if the transport is open.
func (b *Base) IsOpen() bool {
	return b.State() == StateOpen
}

// MarkOpen transitions to the open state and emits the open event.
func (b *Base) MarkOpen() error {
	b.mu.Lock()
	if b.state == StateOpen {
		b.mu.Unlock()
		return ErrAlreadyOpen
	}
	b.state = StateOpen
	b.mu.Unlock()

	b.Emit(Event{Name: EventOpen, Contact: b.contact, Time: b.opts.Clock.Now()})
	return nil
}

// MarkClosed transitions to the closed state, cancels pending request
// timers and emits the close event.
func (b *Base) MarkClosed() error {
	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return ErrNotOpen
	}
	b.state = StateClosed
	for id, timer := range b.pending {
		timer.Stop()
		delete(b.pending, id)
	}
	b.mu.Unlock()

	b.Emit(Event{Name: EventClose, Contact: b.contact, Time: b.opts.Clock.Now()})
	return nil
}

// TrackRequest arms the timeout timer of an outbound request.
// Responses are not tracked.
func (b *Base) TrackRequest(to types.Contact, msg *Message) {
	if msg.IsResponse {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.pending[msg.ID]; ok {
		old.Stop()
	}
	b.pending[msg.ID] = b.opts.Clock.AfterFunc(b.opts.RequestTimeout, func() {
		b.expire(to, msg)
	})
}

// ResolveRequest disarms the timer of a request. It returns false if the
// request was not pending.
func (b *Base) ResolveRequest(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	timer, ok := b.pending[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(b.pending, id)
	return true
}

// PendingRequests returns the number of requests awaiting a response.
func (b *Base) PendingRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Base) expire(to types.Contact, msg *Message) {
	b.mu.Lock()
	if _, ok := b.pending[msg.ID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.pending, msg.ID)
	b.mu.Unlock()

	b.logger.Debug("request timed out",
		logging.ContactID(to.Key()),
		logging.Method(msg.Method),
		logging.MessageID(msg.ID),
		logging.Duration(b.opts.RequestTimeout))

	b.Emit(Event{Name: EventTimeout, Contact: to, Message: msg, Time: b.opts.Clock.Now()})
}

// EmitSend emits a send event.
func (b *Base) EmitSend(to types.Contact, msg *Message) {
	b.Emit(Event{Name: EventSend, Contact: to, Message: msg, Time: b.opts.Clock.Now()})
}

// EmitReceive emits a receive event.
func (b *Base) EmitReceive(from types.Contact, msg *Message) {
	b.Emit(Event{Name: EventReceive, Contact: from, Message: msg, Time: b.opts.Clock.Now()})
}

// EmitError emits an error event.
func (b *Base) EmitError(contact types.Contact, msg *Message, err error) {
	b.Emit(Event{Name: EventError, Contact: contact, Message: msg, Err: err, Time: b.opts.Clock.Now()})
}

// SendFunc sends a message to a contact. Concrete transports pass their
// Send method to Receive so responses emit send events.
type SendFunc func(ctx context.Context, to types.Contact, msg *Message) error

// Receive handles an inbound message: responses resolve their pending
// request, requests are dispatched and answered through send.
func (b *Base) Receive(ctx context.Context, from types.Contact, msg *Message, send SendFunc) {
	if msg.IsResponse {
		b.ResolveRequest(msg.ID)
		b.EmitReceive(from, msg)
		return
	}

	b.EmitReceive(from, msg)
	resp := b.Dispatch(ctx, from, msg)
	if resp == nil {
		return
	}
	if err := send(ctx, from, resp); err != nil {
		b.logger.Debug("failed to send response",
			logging.ContactID(from.Key()),
			logging.MessageID(msg.ID),
			logging.Error(err))
	}
}

// Dispatch answers an inbound request. It returns nil when the request
// is left unanswered.
func (b *Base) Dispatch(ctx context.Context, from types.Contact, req *Message) *Message {
	if req.Method == MethodPing {
		resp, _ := NewResponse(req, PongResult)
		return resp
	}
	if b.opts.Handler == nil {
		return NewErrorResponse(req, ErrMethodNotFound)
	}

	result, err := b.opts.Handler(ctx, from, req)
	if errors.Is(err, ErrNoReply) {
		return nil
	}
	if err != nil {
		return NewErrorResponse(req, err)
	}

	resp, err := NewResponse(req, result)
	if err != nil {
		return NewErrorResponse(req, err)
	}
	return resp
}
