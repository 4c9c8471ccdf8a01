package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/zephyrus-green/ferrycast/pkg/streaming"
)

const (
	sendChSize   = 4096
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection owns one collector connection with a single write goroutine.
// After a read or write error it redials with exponential backoff and
// replays the session start so the collector can reattach the stream.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	closed bool

	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{}

	target    string
	secret    string
	startMsg  []byte
	dropped   atomic.Uint64
	reconnect func()

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	c := &connection{
		sendCh: make(chan []byte, sendChSize),
		ackCh:  make(chan streaming.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	c.reconnect = c.redial
	return c
}

// dial connects and starts the read and write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.target = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) attach(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)
}

// dialOnce performs a single dial with the secret as a query parameter.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.target)
	if err != nil {
		return nil, fmt.Errorf("invalid collector URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("collector dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.fail(conn, "set write deadline", err)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.fail(conn, "write", err)
				return
			}
		}
	}
}

// readLoop routes acks to ackCh. Anything else from the collector is ignored.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.fail(conn, "read", err)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring collector message", "raw", string(message))
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// fail detaches conn and starts a reconnect, once per broken connection.
func (c *connection) fail(conn *ws.Conn, op string, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	_ = conn.Close()
	c.logger.Warn("Collector connection lost", "op", op, "error", err)
	go c.reconnect()
}

func (c *connection) redial() {
	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		timer := time.NewTimer(backoff)
		select {
		case <-c.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Collector redial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		start := c.startMsg
		c.mu.Unlock()
		if start != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(ws.TextMessage, start); err != nil {
				c.logger.Warn("Failed to replay session start", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("Collector reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}
	c.logger.Error("Collector reconnect failed", "maxAttempts", maxReconnect)
}

// send queues data for the write loop and drops it when the queue is full.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// sendAndWait queues data and blocks until the matching ack arrives.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if !c.send(data) {
		return fmt.Errorf("send queue full, %s not sent", ackFor)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops every goroutine.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return conn.Close()
}
