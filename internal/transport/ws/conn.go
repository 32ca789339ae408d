package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// sendBuffer is the per-connection outbound queue. A receiver that can't
	// drain this many frames is treated as dead.
	sendBuffer = 32
)

var (
	errConnClosed     = errors.New("ws: connection closed")
	errSendBufferFull = errors.New("ws: send buffer full")
)

// wsConn adapts a websocket to the hub's non-blocking send contract. Writes
// go through a buffered channel drained by a single pump goroutine; Send
// fails instead of blocking when the buffer is full, which the hub takes as
// the signal to prune the connection.
type wsConn struct {
	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *wsConn) Send(payload []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) writePump() {
	defer func() { _ = c.ws.Close() }()
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.closed) })
}

// closeWithCode sends a close frame with an application close code, then
// tears the connection down. WriteControl is safe alongside the pump.
func (c *wsConn) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.close()
}
