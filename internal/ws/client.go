package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var errClientGone = errors.New("client gone")

// Client wraps one websocket connection. All writes go through a
// buffered send channel drained by writePump, so producers never block
// on socket I/O; a peer that cannot keep up fills the buffer and is
// treated as dead.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, sendBuf int) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuf),
	}
}

// Send enqueues one event for delivery. It returns an error when the
// client is gone or its buffer is full; in the latter case the client is
// shut down so its pumps terminate.
func (c *Client) Send(v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientGone
	}
	select {
	case c.send <- buf:
		return nil
	default:
		c.closeLocked()
		return errClientGone
	}
}

// shutdown stops the write pump; the pump closes the socket once the
// queue drains. Safe to call more than once.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send queue onto the socket. It owns all socket
// writes for the connection and exits when the queue closes or a write
// fails.
func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.shutdown()
			// drain so producers holding a reference don't leak
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
