// Package websocket provides an RPC transport exchanging JSON messages over
// websocket connections.
// Uses gobwas/ws for upgrades and frame handling.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/types"
)

// Common errors.
var (
	ErrNoAddress          = errors.New("contact has no address")
	ErrUnsupportedAddress = errors.New("unsupported multiaddr")
	ErrInvalidEnvelope    = errors.New("invalid envelope")
)

// Config contains websocket transport configuration.
type Config struct {
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// WriteTimeout is the timeout for write operations.
	WriteTimeout time.Duration

	// UpgradeTimeout bounds the server side handshake.
	UpgradeTimeout time.Duration
}

// DefaultConfig returns sensible defaults for websocket configuration.
func DefaultConfig() Config {
	return Config{
		DialTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		UpgradeTimeout: 10 * time.Second,
	}
}

// envelope wraps a message with the identity of its sender.
type envelope struct {
	From    []byte             `json:"from"`
	Addr    string             `json:"addr,omitempty"`
	Message *transport.Message `json:"message"`
}

// Transport is a websocket RPC transport. It listens on the address of
// its local contact and keeps one connection per remote contact.
type Transport struct {
	*transport.Base

	cfg      Config
	upgrader ws.HTTPUpgrader
	logger   *logging.Logger

	mu       sync.RWMutex
	conns    map[string]*conn
	live     map[*conn]struct{}
	listener net.Listener
	server   *http.Server
	bound    multiaddr.Multiaddr

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a websocket transport with the default configuration.
func New(contact types.Contact, opts transport.Options) (*Transport, error) {
	return NewWithConfig(contact, opts, DefaultConfig())
}

// NewWithConfig creates a websocket transport.
func NewWithConfig(contact types.Contact, opts transport.Options, cfg Config) (*Transport, error) {
	if contact.IsEmpty() {
		return nil, fmt.Errorf("%w: empty contact id", transport.ErrUnknownContact)
	}
	if contact.Addr == nil {
		return nil, ErrNoAddress
	}
	if _, err := hostPort(contact.Addr); err != nil {
		return nil, err
	}

	base := transport.NewBase(contact, opts)
	t := &Transport{
		Base:   base,
		cfg:    cfg,
		logger: base.Logger().WithComponent("websocket"),
		conns:  make(map[string]*conn),
		live:   make(map[*conn]struct{}),
	}
	t.upgrader = ws.HTTPUpgrader{Timeout: cfg.UpgradeTimeout}
	return t, nil
}

// Constructor returns a transport constructor using cfg.
func Constructor(cfg Config) transport.Constructor {
	return func(contact types.Contact, opts transport.Options) (transport.Transport, error) {
		return NewWithConfig(contact, opts, cfg)
	}
}

// Contact returns the local contact. Once open, its address is the bound
// listen address.
func (t *Transport) Contact() types.Contact {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := t.Base.Contact()
	if t.bound != nil {
		c.Addr = t.bound
	}
	return c
}

// Open starts listening for inbound connections.
func (t *Transport) Open() error {
	if t.IsOpen() {
		return transport.ErrAlreadyOpen
	}

	addr, err := hostPort(t.Base.Contact().Addr)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	bound, err := toMultiaddr(ln.Addr())
	if err != nil {
		ln.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := &http.Server{
		Handler:           http.HandlerFunc(t.handleUpgrade),
		ReadHeaderTimeout: t.cfg.UpgradeTimeout,
	}

	t.mu.Lock()
	t.listener = ln
	t.server = server
	t.bound = bound
	t.ctx = ctx
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("websocket server stopped", logging.Error(err))
		}
	}()

	if err := t.MarkOpen(); err != nil {
		t.shutdown()
		return err
	}
	t.logger.Info("transport opened", logging.Address(bound.String()))
	return nil
}

// Close stops the listener and closes every connection.
func (t *Transport) Close() error {
	if err := t.MarkClosed(); err != nil {
		return err
	}
	t.shutdown()
	t.logger.Info("transport closed")
	return nil
}

func (t *Transport) shutdown() {
	t.mu.Lock()
	server := t.server
	cancel := t.cancel
	live := t.live
	t.conns = make(map[string]*conn)
	t.live = make(map[*conn]struct{})
	t.server = nil
	t.listener = nil
	t.bound = nil
	t.ctx = nil
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if server != nil {
		_ = server.Close()
	}
	for c := range live {
		_ = c.Close()
	}
	t.wg.Wait()
}

// Send delivers msg to a remote contact, dialing it if no connection exists.
func (t *Transport) Send(ctx context.Context, to types.Contact, msg *transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.IsOpen() {
		return transport.ErrNotOpen
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	c, err := t.connFor(ctx, to)
	if err != nil {
		t.EmitError(to, msg, err)
		return err
	}

	data, err := json.Marshal(envelope{
		From:    []byte(t.Base.Contact().ID),
		Addr:    t.Contact().Addr.String(),
		Message: msg,
	})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	t.TrackRequest(to, msg)
	t.EmitSend(to, msg)

	if err := c.write(data, t.cfg.WriteTimeout); err != nil {
		t.ResolveRequest(msg.ID)
		t.dropConn(to.Key(), c)
		t.EmitError(to, msg, err)
		return fmt.Errorf("writing to %s: %w", to.Key(), err)
	}
	return nil
}

// ConnCount returns the number of live connections.
func (t *Transport) ConnCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

func (t *Transport) connFor(ctx context.Context, to types.Contact) (*conn, error) {
	key := to.Key()

	t.mu.RLock()
	c, ok := t.conns[key]
	t.mu.RUnlock()
	if ok {
		return c, nil
	}

	if to.Addr == nil {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownContact, key)
	}
	addr, err := hostPort(to.Addr)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()

	raw, _, _, err := ws.Dial(dialCtx, "ws://"+addr+"/")
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	c = newConn(raw, true)
	if existing := t.register(key, c); existing != c {
		_ = c.Close()
		return existing, nil
	}
	t.logger.Debug("dialed contact", logging.ContactID(key), logging.Address(addr))
	t.serve(c)
	return c, nil
}

// register stores c for key unless a connection already exists, and
// returns the connection in use.
func (t *Transport) register(key string, c *conn) *conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.conns[key]; ok {
		return existing
	}
	t.conns[key] = c
	return c
}

func (t *Transport) dropConn(key string, c *conn) {
	t.mu.Lock()
	if t.conns[key] == c {
		delete(t.conns, key)
	}
	t.mu.Unlock()
	_ = c.Close()
}

func (t *Transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !t.IsOpen() {
		http.Error(w, "transport not open", http.StatusServiceUnavailable)
		return
	}

	raw, _, _, err := t.upgrader.Upgrade(r, w)
	if err != nil {
		return // Upgrader already wrote error response
	}
	t.serve(newConn(raw, false))
}

// serve starts the read loop of a connection. Connections that arrive
// while the transport shuts down are closed.
func (t *Transport) serve(c *conn) {
	t.mu.Lock()
	ctx := t.ctx
	if ctx == nil || ctx.Err() != nil {
		t.mu.Unlock()
		_ = c.Close()
		return
	}
	t.live[c] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer t.forget(c)
		t.readLoop(ctx, c)
	}()
}

func (t *Transport) forget(c *conn) {
	t.mu.Lock()
	delete(t.live, c)
	t.mu.Unlock()
}

func (t *Transport) readLoop(ctx context.Context, c *conn) {
	var remote string
	defer func() {
		if remote != "" {
			t.dropConn(remote, c)
		} else {
			_ = c.Close()
		}
	}()

	for {
		data, err := c.read()
		if err != nil {
			if ctx.Err() == nil && !isClosed(err) {
				t.logger.Debug("connection read failed", logging.Error(err))
			}
			return
		}
		if data == nil {
			continue
		}

		from, msg, err := decodeEnvelope(data)
		if err != nil {
			t.logger.Warn("dropping invalid message", logging.Error(err))
			continue
		}
		if remote == "" {
			remote = from.Key()
			t.register(remote, c)
		}

		t.Receive(ctx, from, msg, t.Send)
	}
}

func decodeEnvelope(data []byte) (types.Contact, *transport.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return types.Contact{}, nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if len(env.From) == 0 {
		return types.Contact{}, nil, fmt.Errorf("%w: missing sender", ErrInvalidEnvelope)
	}
	if err := env.Message.Validate(); err != nil {
		return types.Contact{}, nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	from := types.Contact{ID: peer.ID(env.From)}
	if env.Addr != "" {
		if maddr, err := multiaddr.NewMultiaddr(env.Addr); err == nil {
			from.Addr = maddr
		}
	}
	return from, env.Message, nil
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// Ensure Transport implements transport.Transport.
var _ transport.Transport = (*Transport)(nil)
