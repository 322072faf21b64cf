package ws

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/mayankgaur0405/Dev2Gether/pkg/idgen"
)

// Conn wraps one websocket connection. It carries the broker-assigned
// connection id and, once the client has joined, the room and display name
// the connection is bound to. Room and name are only touched from the read
// loop goroutine.
type Conn struct {
	ws  *websocket.Conn
	out chan []byte

	id     string
	roomID string
	name   string
}

// Accept upgrades HTTP to websocket (allow all origins)
func Accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
}

// NewConn wraps a websocket connection and assigns it a fresh id
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:  ws,
		id:  idgen.NewConnID(),
		out: make(chan []byte, 256),
	}
}

// ID returns the broker-assigned connection identifier.
func (c *Conn) ID() string { return c.id }

// Send enqueues a frame without blocking. A slow consumer whose buffer is
// full has the frame dropped.
func (c *Conn) Send(frame []byte) bool {
	select {
	case c.out <- frame:
		return true
	default:
		return false
	}
}

// Room returns the room this connection has joined, or "".
func (c *Conn) Room() string { return c.roomID }

// SetRoom records the joined room id.
func (c *Conn) SetRoom(roomID string) { c.roomID = roomID }

// Name returns the display name this connection joined under.
func (c *Conn) Name() string { return c.name }

// SetName records the display name.
func (c *Conn) SetName(name string) { c.name = name }

// Read blocks until it receives a text/binary message
// Returns false if connection is closed
func (c *Conn) Read(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// WriteLoop sends outbound frames + periodic pings. A failed ping surfaces
// as a read error on the peer loop, which turns transport loss into an
// implicit leave. Exits when ctx is cancelled.
func (c *Conn) WriteLoop(ctx context.Context) {
	p := 20 * time.Second
	t := time.NewTicker(p)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			_ = c.ws.Write(ctx, websocket.MessageText, b)
		case <-t.C:
			_ = c.ws.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the websocket connection normally.
func (c *Conn) Close() error { return c.ws.Close(websocket.StatusNormalClosure, "bye") }
