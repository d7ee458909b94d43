package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kookworks/kgate/internal/errors"
)

// Conn is one live gateway connection. Inbound frames arrive on
// Messages; the channel closes when the connection dies, after which
// Err reports why. A Conn carries no retry or framing logic.
type Conn interface {
	// Send writes one outbound frame. Safe for concurrent use.
	Send(data []byte) error

	// Messages delivers inbound frames until the connection closes.
	Messages() <-chan []byte

	// Err returns the reason Messages closed. It is nil after a local
	// Close and after a normal closure by the peer.
	Err() error

	// Close tears down the connection.
	Close() error
}

// Transport dials gateway connections. The Session dials once per
// connection attempt and never reuses a Conn.
type Transport interface {
	Open(ctx context.Context, url string) (Conn, error)
}

// WebSocketTransport dials with gorilla/websocket.
type WebSocketTransport struct {
	// HandshakeTimeout bounds the dial. Zero means 10s.
	HandshakeTimeout time.Duration
}

// Open implements Transport.
func (t *WebSocketTransport) Open(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: t.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Newf(errors.CategoryTransport, "dial %s", url).Wrap(err)
	}

	c := &wsConn{
		ws:       ws,
		messages: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	ws       *websocket.Conn
	messages chan []byte
	done     chan struct{}

	writeMu sync.Mutex

	closeOnce sync.Once

	mu      sync.Mutex
	readErr error
	closed  bool
}

func (c *wsConn) readLoop() {
	defer close(c.messages)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !c.closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.readErr = errors.Newf(errors.CategoryTransport, "read").Wrap(err)
			}
			c.mu.Unlock()
			return
		}
		select {
		case c.messages <- data:
		case <-c.done:
			// Close was called; nothing drains messages anymore.
			return
		}
	}
}

func (c *wsConn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Newf(errors.CategoryTransport, "write: %v", err)
	}
	return nil
}

func (c *wsConn) Messages() <-chan []byte { return c.messages }

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
	return c.ws.Close()
}
