// Package transport adapts konsol's byte-stream server loop (spec.md
// §5) onto concrete carriers. stdio is the default; websocket is the
// alternate transport named in SPEC_FULL.md's Domain Stack, built on
// gorilla/websocket the way the rest of the retrieval pack reaches for
// it for bidirectional framed messaging.
package transport

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// A konsol client is a GUI process talking to its own paired server,
	// never a cross-origin browser page, so the origin check is a no-op.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSConn adapts one accepted WebSocket connection to the io.ReadWriter
// the framing codec expects: reads drain one WS message at a time into
// a byte buffer, and writes accumulate until Flush (which framing.Writer
// calls after every frame) ships them as a single binary WS message, so
// one konsol frame maps to exactly one WS message on the wire.
type WSConn struct {
	conn *websocket.Conn

	readBuf []byte

	writeBuf []byte
}

// NewWSConn wraps an already-upgraded connection.
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

// Upgrade upgrades an incoming HTTP request to a WebSocket connection
// and wraps it.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: websocket upgrade: %w", err)
	}
	return NewWSConn(conn), nil
}

func (c *WSConn) Read(p []byte) (int, error) {
	for len(c.readBuf) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("transport: websocket read: %w", err)
		}
		c.readBuf = data
	}
	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

func (c *WSConn) Write(p []byte) (int, error) {
	c.writeBuf = append(c.writeBuf, p...)
	return len(p), nil
}

// Flush ships whatever has accumulated since the last Flush as a single
// binary WebSocket message. framing.Writer calls this automatically
// after every frame it writes (it type-asserts for an optional Flush
// method), so callers never need to call it directly.
func (c *WSConn) Flush() error {
	if len(c.writeBuf) == 0 {
		return nil
	}
	err := c.conn.WriteMessage(websocket.BinaryMessage, c.writeBuf)
	c.writeBuf = c.writeBuf[:0]
	if err != nil {
		return fmt.Errorf("transport: websocket write: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *WSConn) Close() error {
	return c.conn.Close()
}
