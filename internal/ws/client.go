package ws

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 4096
	// Close reasons must fit in a control frame alongside the 2-byte code.
	maxCloseReason = 123
)

// client owns one WebSocket connection. All data frames go through the
// buffered send channel and a single writer goroutine.
type client struct {
	conn         *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	closeGrace   time.Duration

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, buffer int, writeTimeout, closeGrace time.Duration) *client {
	c := &client{
		conn:         conn,
		send:         make(chan []byte, buffer),
		writeTimeout: writeTimeout,
		closeGrace:   closeGrace,
		done:         make(chan struct{}),
	}
	conn.SetReadLimit(maxMessageSize)
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer close(c.done)
	for msg := range c.send {
		if c.closing.Load() {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("ws write error: %v", err)
			c.closing.Store(true)
			// Unblocks the reader so the session is torn down.
			c.conn.Close()
		}
	}
}

// Send queues a text frame without blocking.
func (c *client) Send(data []byte) bool {
	if c.closing.Load() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close writes a close frame and gives the peer closeGrace to echo it before
// the read side gives up.
func (c *client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		if len(reason) > maxCloseReason {
			reason = reason[:maxCloseReason]
		}
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout)); err != nil {
			c.conn.Close()
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.closeGrace))
	})
}

// shutdown stops the writer and releases the connection. The session must be
// stopped first so nothing sends on the closed channel.
func (c *client) shutdown() {
	c.closing.Store(true)
	close(c.send)
	<-c.done
	c.conn.Close()
}
