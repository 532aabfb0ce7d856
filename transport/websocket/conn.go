package websocket

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/multiformats/go-multiaddr"
)

// conn is a websocket connection. The dialing side writes masked client
// frames, the accepting side writes server frames.
type conn struct {
	net.Conn
	client bool

	writeMu   sync.Mutex // Protects writes to conn
	closeOnce sync.Once
}

func newConn(raw net.Conn, client bool) *conn {
	return &conn{Conn: raw, client: client}
}

// write writes a text frame with proper locking.
func (c *conn) write(data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(timeout))
	}
	if c.client {
		return wsutil.WriteClientMessage(c.Conn, ws.OpText, data)
	}
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// read returns the payload of the next data frame, or nil for control
// frames handled by wsutil.
func (c *conn) read() ([]byte, error) {
	var (
		data []byte
		op   ws.OpCode
		err  error
	)
	if c.client {
		data, op, err = wsutil.ReadServerData(c.Conn)
	} else {
		data, op, err = wsutil.ReadClientData(c.Conn)
	}
	if err != nil {
		return nil, err
	}
	if op != ws.OpText && op != ws.OpBinary {
		return nil, nil
	}
	return data, nil
}

// Close closes the underlying connection once.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.Conn.Close()
	})
	return err
}

// hostPort extracts the dialable host:port of a websocket multiaddr such
// as /ip4/127.0.0.1/tcp/4650/ws.
func hostPort(maddr multiaddr.Multiaddr) (string, error) {
	if maddr == nil {
		return "", ErrNoAddress
	}

	var host string
	for _, code := range []int{multiaddr.P_IP4, multiaddr.P_IP6, multiaddr.P_DNS4, multiaddr.P_DNS6, multiaddr.P_DNS} {
		if v, err := maddr.ValueForProtocol(code); err == nil {
			host = v
			break
		}
	}
	if host == "" {
		return "", fmt.Errorf("%w: %s has no host", ErrUnsupportedAddress, maddr)
	}

	port, err := maddr.ValueForProtocol(multiaddr.P_TCP)
	if err != nil {
		return "", fmt.Errorf("%w: %s has no tcp port", ErrUnsupportedAddress, maddr)
	}
	return net.JoinHostPort(host, port), nil
}

// toMultiaddr converts a bound TCP listener address into a websocket
// multiaddr.
func toMultiaddr(addr net.Addr) (multiaddr.Multiaddr, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddress, addr)
	}

	proto := "ip4"
	if tcp.IP.To4() == nil {
		proto = "ip6"
	}
	return multiaddr.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%s/ws", proto, tcp.IP.String(), strconv.Itoa(tcp.Port)))
}
