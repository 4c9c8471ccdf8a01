// Package websocket implements a storage.Backend that streams the history
// to a remote collector over a WebSocket instead of keeping it locally.
package websocket

import (
	"log/slog"
	"time"

	"github.com/zephyrus-green/ferrycast/pkg/core"
	"github.com/zephyrus-green/ferrycast/pkg/streaming"
)

// Config holds remote backend configuration.
type Config struct {
	URL        string
	Secret     string
	Vessels    []core.Vessel
	TickPeriod time.Duration
}

// Backend streams position and volume records to the collector.
// Session start and end wait for an ack; records are fire-and-forget.
type Backend struct {
	conn   *connection
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new remote storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "remote-storage")
	return &Backend{
		conn:   newConnection(logger),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Init connects and opens the session on the collector.
func (b *Backend) Init() error {
	if err := b.conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}

	start, err := streaming.Marshal(streaming.TypeStartSession, 0, streaming.StartSessionPayload{
		Started:    b.now().UTC(),
		Vessels:    b.cfg.Vessels,
		TickPeriod: b.cfg.TickPeriod.String(),
	})
	if err != nil {
		return err
	}
	b.conn.mu.Lock()
	b.conn.startMsg = start
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(start, streaming.TypeStartSession, ackTimeout)
}

// Close ends the session and disconnects.
func (b *Backend) Close() error {
	end, err := streaming.Marshal(streaming.TypeEndSession, 0, nil)
	if err == nil {
		if err := b.conn.sendAndWait(end, streaming.TypeEndSession, ackTimeout); err != nil {
			b.logger.Warn("Session end not acknowledged", "error", err)
		}
	}
	return b.conn.close()
}

func (b *Backend) RecordPosition(e *core.PositionEvent) error {
	return b.send(streaming.TypePosition, e)
}

func (b *Backend) RecordVolume(v *core.VolumeIntent) error {
	return b.send(streaming.TypeVolume, v)
}

// Dropped returns how many records were discarded because the send queue was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

func (b *Backend) send(msgType string, payload any) error {
	data, err := streaming.Marshal(msgType, 0, payload)
	if err != nil {
		return err
	}
	if !b.conn.send(data) {
		b.logger.Debug("Send queue full, dropping record", "type", msgType)
	}
	return nil
}
