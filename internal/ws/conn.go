package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 256
	writeTimeout  = 10 * time.Second
)

// Close codes sent to clients. Authentication failures use a distinct code so
// clients can tell "re-login" apart from "reconnect with the same token".
const (
	CloseAuthFailure   = 4401
	CloseQueueOverflow = websocket.ClosePolicyViolation
)

// ConnInfo describes one live connection for logging and event payloads.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	UserName    string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Conn wraps one client's socket. Outbound frames go through a bounded queue
// drained by writePump, so a slow reader never blocks a broadcast; the queue
// overflow policy lives in the hub.
type Conn struct {
	info ConnInfo
	sock *websocket.Conn
	send chan []byte

	lastActive atomic.Int64 // unix nanos

	closeOnce   sync.Once
	closed      chan struct{}
	closeCode   int
	closeReason string
}

func newConn(sock *websocket.Conn, info ConnInfo) *Conn {
	c := &Conn{
		info:   info,
		sock:   sock,
		send:   make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
	}
	c.touch()
	return c
}

// UserID returns the owning identity.
func (c *Conn) UserID() int64 {
	return c.info.UserID
}

// trySend queues a frame without blocking. Reports false when the queue is
// full or the connection is closed.
func (c *Conn) trySend(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// touch refreshes the last-activity timestamp.
func (c *Conn) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Conn) lastActiveTime() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// close marks the connection closed. Idempotent; the first caller's code and
// reason win. Frames already queued before close are dropped silently.
func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.closed)
	})
}

// writePump drains the send queue onto the wire. One writer goroutine per
// connection; exits when the connection closes or a write fails.
func (c *Conn) writePump() {
	defer c.sock.Close()

	for {
		select {
		case payload := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.closed:
			c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.sock.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeReason))
			return
		}
	}
}
