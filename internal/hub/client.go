package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"workhub/internal/metrics"
	"workhub/internal/models"
)

const sendBuffer = 64

// Client is one live workspace connection. Identity is set once at admission
// and never changes for the connection's lifetime. Outbound frames pass
// through a buffered channel drained by a writer goroutine, so a peer with a
// stalled TCP window never blocks the reactor; when the buffer is full the
// frame is dropped and counted.
type Client struct {
	ID          string
	User        models.UserIdentity
	ConnectedAt time.Time

	conn *websocket.Conn
	out  chan models.WSFrame
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	hook func(models.WSFrame)
}

func NewClient(conn *websocket.Conn) *Client {
	c := &Client{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now().UTC(),
		conn:        conn,
		out:         make(chan models.WSFrame, sendBuffer),
		done:        make(chan struct{}),
	}
	if conn != nil {
		go c.writePump()
	}
	return c
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send queues one frame best-effort. A full buffer means the peer is not
// draining; the frame is dropped rather than blocking the caller.
func (c *Client) Send(frame models.WSFrame) {
	c.mu.Lock()
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		hook(frame)
		return
	}
	if c.conn == nil {
		return
	}
	select {
	case c.out <- frame:
	case <-c.done:
	default:
		metrics.DeliveryDropped()
	}
}

// Close stops the writer goroutine. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) writePump() {
	for {
		select {
		case frame := <-c.out:
			// a write error means the connection is gone; the read pump
			// notices independently, so the error is dropped here
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
