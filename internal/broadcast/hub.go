package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zephyrus-green/ferrycast/pkg/core"
	"github.com/zephyrus-green/ferrycast/pkg/streaming"
)

// Defaults for Config.
const (
	DefaultPeriod       = time.Second
	DefaultClientBuffer = 8
)

// ErrClosed is returned by Serve after Close.
var ErrClosed = errors.New("broadcast hub closed")

// SnapshotSource supplies the frame content. *cache.PositionTable satisfies it.
type SnapshotSource interface {
	Snapshot() []core.VesselPosition
	Vessels() []core.MMSI
}

// Config holds hub settings.
type Config struct {
	Period       time.Duration
	ClientBuffer int
}

// Hub pushes the position snapshot to every connected streaming client once
// per period. A client that cannot keep up, fails a write or closes is
// removed; the hub never waits on a client.
type Hub struct {
	cfg      Config
	source   SnapshotSource
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	nextID atomic.Uint64
	seq    atomic.Uint64
	frames atomic.Uint64

	framesSent     metric.Int64Counter
	clientsDropped metric.Int64Counter
}

// New creates a hub reading snapshots from source.
func New(cfg Config, source SnapshotSource, logger *slog.Logger) (*Hub, error) {
	if source == nil {
		return nil, errors.New("broadcast: snapshot source is required")
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.ClientBuffer < 1 {
		cfg.ClientBuffer = DefaultClientBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := meter()
	framesSent, err := m.Int64Counter(
		"broadcast.frames.sent",
		metric.WithDescription("Snapshot frames handed to client write loops"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	clientsDropped, err := m.Int64Counter(
		"broadcast.clients.dropped",
		metric.WithDescription("Streaming clients removed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return &Hub{
		cfg:    cfg,
		source: source,
		logger: logger,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboards are served from other origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:        make(map[*client]struct{}),
		framesSent:     framesSent,
		clientsDropped: clientsDropped,
	}, nil
}

// Serve upgrades the request and registers the connection as a client.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return ErrClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	c := newClient(h.nextID.Add(1), conn, r.RemoteAddr, h.cfg.ClientBuffer)

	hello, err := streaming.Marshal(streaming.TypeHello, 0, streaming.HelloPayload{
		Vessels:        h.source.Vessels(),
		BroadcastEvery: h.cfg.Period.String(),
	})
	if err != nil {
		c.close()
		return err
	}
	c.send <- hello

	if !h.register(c) {
		c.goodbye()
		c.close()
		return ErrClosed
	}

	go c.writeLoop(func(err error) { h.remove(c, "write failed", err) })
	go c.readLoop(func(err error) { h.remove(c, "disconnected", err) })
	return nil
}

// ServeHTTP lets the hub be mounted directly as a handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Serve(w, r); err != nil && !errors.Is(err, ErrClosed) {
		h.logger.Warn("Streaming client rejected", "remote", r.RemoteAddr, "error", err)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Info("Streaming client connected", "client", c.id, "remote", c.remote, "clients", len(h.clients))
	return true
}

func (h *Hub) remove(c *client, reason string, err error) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	remaining := len(h.clients)
	h.mu.Unlock()

	c.close()
	if !ok {
		return
	}

	h.clientsDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
	if err != nil && !ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseNoStatusReceived) {
		h.logger.Debug("Streaming client removed", "client", c.id, "reason", reason, "error", err, "clients", remaining)
		return
	}
	h.logger.Info("Streaming client removed", "client", c.id, "reason", reason, "clients", remaining)
}

// Broadcast serialises the current snapshot once and hands it to every client
// without blocking. It returns the number of clients the frame was queued for.
func (h *Hub) Broadcast() (int, error) {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	if n == 0 {
		return 0, nil
	}

	frame, err := streaming.Marshal(streaming.TypePositions, h.seq.Add(1), streaming.PositionsPayload(h.source.Snapshot()))
	if err != nil {
		return 0, err
	}

	var (
		sent int
		slow []*client
	)
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- frame:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.remove(c, "buffer full", nil)
	}

	h.frames.Add(uint64(sent))
	h.framesSent.Add(context.Background(), int64(sent))
	return sent, nil
}

// Run broadcasts every period until ctx is cancelled, then closes the hub.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.Period)
	defer ticker.Stop()

	h.logger.Info("Broadcaster started", "period", h.cfg.Period, "clientBuffer", h.cfg.ClientBuffer)

	for {
		select {
		case <-ctx.Done():
			h.Close()
			h.logger.Info("Broadcaster stopped", "frames", h.frames.Load())
			return
		case <-ticker.C:
			if _, err := h.Broadcast(); err != nil {
				h.logger.Error("Failed to build snapshot frame", "error", err)
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// FramesSent returns the number of frames queued to clients so far.
func (h *Hub) FramesSent() uint64 {
	return h.frames.Load()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	clear(h.clients)
	h.mu.Unlock()

	for _, c := range clients {
		c.goodbye()
		c.close()
	}
}
