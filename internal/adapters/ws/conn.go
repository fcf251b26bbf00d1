package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrBackpressure = errors.New("backpressure")

// conn wraps one WebSocket with a buffered outbound queue.
// It implements hub.Sender.
type conn struct {
	socket *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(socket *websocket.Conn, sendBuffer int) *conn {
	return &conn{
		socket: socket,
		send:   make(chan []byte, sendBuffer),
	}
}

// TrySend queues data without blocking. A full queue means the client is
// not draining; the event is dropped rather than stalling the hub.
func (c *conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.socket.Close()
	c.mu.Unlock()
}
