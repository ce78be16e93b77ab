package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ride-relay/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one live relay connection. Outbound frames go through a bounded
// queue drained by a single writer; a client that cannot keep up is
// disconnected instead of buffering without limit.
type Client struct {
	Handle string
	Info   ConnInfo

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	closeCode   int
	closeReason string
}

func newClient(conn *websocket.Conn, info ConnInfo, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		Handle: info.ConnID,
		Info:   info,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// Enqueue queues a frame for delivery. It returns false if the client is
// closed or its queue overflowed, in which case the client is closed.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		observability.IncDroppedSend("closed")
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		observability.IncDroppedSend("closed")
		return false
	default:
		observability.IncDroppedSend("overflow")
		c.Close(websocket.ClosePolicyViolation, "send buffer full")
		return false
	}
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client closed and never blocks. The writer sends the close
// frame and releases the socket. Safe to call more than once.
func (c *Client) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// writeLoop is the only writer of conn. It owns the socket teardown, so a
// peer that stopped reading stalls only this goroutine.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func (c *Client) teardown() {
	if c.conn == nil {
		return
	}
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeReason), deadline)
	_ = c.conn.Close()
}

func (c *Client) write(messageType int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, payload)
}
