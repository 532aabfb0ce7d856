package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// Hub connects in-process transports. Delivery is synchronous: a request
// is handled and answered on the sender's goroutine.
type Hub struct {
	members map[string]*MemoryTransport
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		members: make(map[string]*MemoryTransport),
	}
}

// Constructor returns a transport constructor bound to this hub.
func (h *Hub) Constructor() Constructor {
	return func(contact types.Contact, opts Options) (Transport, error) {
		return NewMemoryTransport(h, contact, opts)
	}
}

// Members returns the contacts of the open transports on the hub.
func (h *Hub) Members() []types.Contact {
	h.mu.RLock()
	defer h.mu.RUnlock()

	contacts := make([]types.Contact, 0, len(h.members))
	for _, t := range h.members {
		contacts = append(contacts, t.Contact())
	}
	return contacts
}

func (h *Hub) attach(t *MemoryTransport) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := t.Contact().Key()
	if existing, ok := h.members[key]; ok && existing != t {
		return fmt.Errorf("%w: %s", ErrDuplicateMember, key)
	}
	h.members[key] = t
	return nil
}

func (h *Hub) detach(t *MemoryTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := t.Contact().Key()
	if h.members[key] == t {
		delete(h.members, key)
	}
}

func (h *Hub) lookup(c types.Contact) (*MemoryTransport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.members[c.Key()]
	return t, ok
}

// MemoryTransport is an in-process transport attached to a Hub.
type MemoryTransport struct {
	*Base
	hub *Hub
}

// NewMemoryTransport creates a transport for contact on hub.
func NewMemoryTransport(hub *Hub, contact types.Contact, opts Options) (*MemoryTransport, error) {
	if hub == nil {
		return nil, fmt.Errorf("memory transport requires a hub")
	}
	if contact.IsEmpty() {
		return nil, fmt.Errorf("%w: empty contact id", ErrUnknownContact)
	}
	base := NewBase(contact, opts)
	base.logger = base.logger.WithComponent("memory-transport")
	return &MemoryTransport{Base: base, hub: hub}, nil
}

// Open attaches the transport to its hub.
func (t *MemoryTransport) Open() error {
	if t.IsOpen() {
		return ErrAlreadyOpen
	}
	if err := t.hub.attach(t); err != nil {
		return err
	}
	if err := t.MarkOpen(); err != nil {
		return err
	}
	t.logger.Debug("transport opened")
	return nil
}

// Close detaches the transport from its hub.
func (t *MemoryTransport) Close() error {
	if err := t.MarkClosed(); err != nil {
		return err
	}
	t.hub.detach(t)
	t.logger.Debug("transport closed")
	return nil
}

// Send delivers msg to the transport registered for to.
func (t *MemoryTransport) Send(ctx context.Context, to types.Contact, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.IsOpen() {
		return ErrNotOpen
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	peer, ok := t.hub.lookup(to)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownContact, to.Key())
		t.EmitError(to, msg, err)
		return err
	}

	out := *msg
	t.TrackRequest(to, &out)
	t.EmitSend(to, &out)

	in := out
	peer.Receive(ctx, t.Contact(), &in, peer.Send)
	return nil
}

// Ensure MemoryTransport implements Transport.
var _ Transport = (*MemoryTransport)(nil)
