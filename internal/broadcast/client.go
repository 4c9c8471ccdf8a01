package broadcast

import (
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// client is one streaming connection with a single write goroutine.
type client struct {
	id     uint64
	remote string
	conn   *ws.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(id uint64, conn *ws.Conn, remote string, buffer int) *client {
	return &client{
		id:     id,
		remote: remote,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// close stops the write loop and closes the socket. Safe to call repeatedly.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// goodbye sends a normal-closure frame; it may run concurrently with the writer.
func (c *client) goodbye() {
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

// writeLoop drains send and writes frames to the socket. It returns on write
// error, on close, or when done is closed; onError is called for failures.
func (c *client) writeLoop(onError func(error)) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				onError(err)
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				onError(err)
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				onError(err)
				return
			}
		}
	}
}

// readLoop discards inbound frames and reports when the peer goes away.
func (c *client) readLoop(onClose func(error)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			onClose(err)
			return
		}
	}
}
